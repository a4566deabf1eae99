package handlers

import (
	"html/template"
	"net/http"

	"ascii-arena/internal/elo"
	"ascii-arena/internal/services"
)

const apiDocsHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>ASCII Arena API Documentation</title>
    <style>
        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            background: #111;
            padding: 20px;
        }

        .container {
            max-width: 960px;
            margin: 0 auto;
            background: white;
            border-radius: 12px;
            overflow: hidden;
        }

        header {
            background: #1a1a2e;
            color: #7CFC00;
            padding: 32px 40px;
            font-family: monospace;
        }

        main {
            padding: 40px;
        }

        h2 {
            color: #1a1a2e;
            font-size: 26px;
            margin: 30px 0 15px;
            border-bottom: 3px solid #7CFC00;
        }

        .endpoint {
            background: #f8f9fa;
            border-left: 4px solid #1a1a2e;
            padding: 16px 20px;
            margin: 16px 0;
            border-radius: 6px;
        }

        .method {
            display: inline-block;
            padding: 2px 10px;
            border-radius: 4px;
            font-weight: bold;
            font-size: 13px;
            margin-right: 10px;
        }

        .method.get { background: #28a745; color: white; }
        .method.post { background: #007bff; color: white; }

        pre, code {
            font-family: 'SFMono-Regular', Consolas, monospace;
            font-size: 13px;
        }

        pre {
            background: #1a1a2e;
            color: #e9ecef;
            padding: 14px;
            border-radius: 6px;
            overflow-x: auto;
            margin-top: 10px;
        }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <pre style="background:none;color:inherit;padding:0">
   _   ___  ___ ___ ___     _
  /_\ / __|/ __|_ _|_ _|   /_\  _ _ ___ _ _  __ _
 / _ \\__ \ (__ | | | |   / _ \| '_/ -_) ' \/ _' |
/_/ \_\___/\___|___|___| /_/ \_\_| \___|_||_\__,_|</pre>
            <p>Vote on ASCII art. Models climb an Elo ladder.</p>
        </header>

        <main>
            <section>
                <h2>Ratings</h2>
                <p>Every model starts at {{.DefaultRating}}. After each vote both models move by
                <code>K * (score - expected)</code> where
                <code>K = max({{.BaseK}} / (1 + votes / {{.DecayDivisor}}), {{.MinK}})</code> and
                <code>expected = 1 / (1 + 10^((opponent - self) / 400))</code>.
                Ratings are rounded to whole points after the update.</p>
            </section>

            <section>
                <h2>Voting</h2>
                <div class="endpoint">
                    <span class="method get">GET</span><code>/api/random-pair</code>
                    <p>A prompt and two outputs from different models. 404 when nothing can be paired.</p>
<pre>{
  "prompt":  {"id": "...", "text": "a lighthouse"},
  "outputA": {"id": "...", "prompt_id": "...", "model_id": "...", "content": "|^|"},
  "outputB": {"id": "...", "prompt_id": "...", "model_id": "...", "content": "/#\\"}
}</pre>
                </div>
                <div class="endpoint">
                    <span class="method post">POST</span><code>/api/vote</code>
                    <p>Limited to {{.VoteLimit}} votes per client IP every {{.VoteWindow}}.
                    Returns 400 for malformed votes, 404 for unknown outputs, 409 when the ratings
                    could not be updated because of concurrent votes, 429 when rate limited.</p>
<pre>{"output_a_id": "...", "output_b_id": "...", "winner_id": "..."}

{
  "success": true,
  "elo_data": {
    "vote_id": "...",
    "winner": {"model_id": "...", "model_name": "...", "old_elo": 1500, "new_elo": 1516, "change": 16, "vote_count": 1, "k_factor": 32},
    "loser":  {"model_id": "...", "model_name": "...", "old_elo": 1500, "new_elo": 1484, "change": -16, "vote_count": 1, "k_factor": 32}
  }
}</pre>
                </div>
            </section>

            <section>
                <h2>Leaderboard</h2>
                <div class="endpoint">
                    <span class="method get">GET</span><code>/api/leaderboard?limit=N</code>
                    <p>Models by rating, {{.DefaultLimit}} by default and at most {{.MaxLimit}}. Tied ratings share a rank.</p>
                </div>
                <div class="endpoint">
                    <span class="method get">GET</span><code>/api/ratings/preview?winner=1500&amp;loser=1500&amp;winnerVotes=0&amp;loserVotes=100</code>
                    <p>Runs the rating engine without recording anything.</p>
                </div>
                <div class="endpoint">
                    <span class="method get">GET</span><code>/ws/leaderboard</code>
                    <p>WebSocket stream of <code>{"type": "rating_update", "change": {...}}</code> messages, one per recorded vote.</p>
                </div>
            </section>

            <section>
                <h2>Admin</h2>
                <div class="endpoint">
                    <span class="method post">POST</span><code>/api/admin/login</code>
                    <p><code>{"password": "..."}</code> returns <code>{"token": "...", "expires_at": "..."}</code>.
                    Send it as <code>Authorization: Bearer &lt;token&gt;</code> to the routes below.</p>
                </div>
                <div class="endpoint">
                    <span class="method post">POST</span><code>/api/admin/models</code>
                    <pre>{"model_name": "gpt-4o", "model_config": "temperature=0.7", "metadata": {"provider": "openai"}}</pre>
                </div>
                <div class="endpoint">
                    <span class="method post">POST</span><code>/api/admin/prompts</code>
                    <pre>{"text": "a lighthouse"}</pre>
                </div>
                <div class="endpoint">
                    <span class="method post">POST</span><code>/api/admin/outputs</code>
                    <pre>{"prompt_id": "...", "model_id": "...", "content": "..."}</pre>
                </div>
            </section>

            <section>
                <h2>Operations</h2>
                <div class="endpoint">
                    <span class="method get">GET</span><code>/health</code>
                    <span class="method get">GET</span><code>/metrics</code>
                </div>
            </section>
        </main>
    </div>
</body>
</html>`

var docsTemplate = template.Must(template.New("docs").Parse(apiDocsHTML))

type docsData struct {
	DefaultRating int
	BaseK         float64
	MinK          float64
	DecayDivisor  float64
	VoteLimit     int
	VoteWindow    string
	DefaultLimit  int
	MaxLimit      int
}

// DocsHandler renders the API reference with the live rating and limit settings.
func DocsHandler(voteLimit int, voteWindow string) http.HandlerFunc {
	data := docsData{
		DefaultRating: elo.DefaultRating,
		BaseK:         elo.BaseK,
		MinK:          elo.MinK,
		DecayDivisor:  elo.DecayDivisor,
		VoteLimit:     voteLimit,
		VoteWindow:    voteWindow,
		DefaultLimit:  services.DefaultLeaderboardLimit,
		MaxLimit:      services.MaxLeaderboardLimit,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		docsTemplate.Execute(w, data)
	}
}
