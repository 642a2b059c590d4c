package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"github.com/olehluchkiv/mastersort/internal/report"
)

const reportHTMLTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>mastersort: Partition Report</title>
  <style>
    *, *::before, *::after { box-sizing: border-box; margin: 0; padding: 0; }

    body {
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
      display: flex;
      flex-direction: column;
      align-items: center;
      min-height: 100vh;
      padding: 1rem;
      background-color: #f8f9fa;
      color: #212529;
    }

    @media (prefers-color-scheme: dark) {
      body {
        background-color: #1a1a2e;
        color: #e0e0e0;
      }
      .controls button, .controls select {
        background-color: #2d2d44;
        color: #e0e0e0;
        border-color: #444;
      }
    }

    h1 {
      margin: 1rem 0;
      font-size: 1.4rem;
      font-weight: 600;
    }

    .controls {
      display: flex;
      gap: 0.5rem;
      margin-bottom: 1rem;
      flex-wrap: wrap;
      justify-content: center;
      align-items: center;
    }

    .controls button, .controls select {
      padding: 0.4rem 0.9rem;
      font-size: 0.9rem;
      border: 1px solid #ccc;
      border-radius: 6px;
      background-color: #ffffff;
      color: #212529;
      cursor: pointer;
    }

    .slide-counter {
      font-size: 0.9rem;
      font-weight: 500;
      min-width: 4rem;
      text-align: center;
    }

    .diagram-viewport {
      width: 100%;
      overflow: auto;
      flex: 1;
      display: flex;
      justify-content: center;
      padding: 1rem;
    }

    .slide-panel.ready:not(.active) {
      display: none;
    }

    .summary {
      width: 100%;
      max-width: 60rem;
      margin-top: 1rem;
      padding: 1rem;
      border: 1px solid #ccc;
      border-radius: 6px;
      font-size: 0.85rem;
      white-space: pre;
      overflow-x: auto;
      text-align: left;
    }

    .mermaid svg .nodeLabel { font-size: 16px !important; }
  </style>
</head>
<body>
  <h1>mastersort: Partition Report</h1>

  <div class="controls">
    <button id="prev-btn" title="Previous Slide">Prev</button>
    <select id="slide-select">
      {{range .Slides}}<option value="{{.Index}}">{{.Title}}</option>
      {{end}}
    </select>
    <button id="next-btn" title="Next Slide">Next</button>
    <span class="slide-counter" id="slide-counter">1 / {{.SlideCount}}</span>
    <button id="copy-src" title="Copy Mermaid Source">Copy Source</button>
  </div>

  <div class="diagram-viewport">
    <div class="diagram-container">
      {{range .Slides}}<div class="slide-panel" id="slide-{{.Index}}">
        <pre class="mermaid">{{.Mermaid}}</pre>
      </div>
      {{end}}
    </div>
  </div>

  <pre class="summary">{{.Summary}}</pre>

  <script src="https://cdn.jsdelivr.net/npm/mermaid@11/dist/mermaid.min.js"></script>
  <script>
    mermaid.initialize({ startOnLoad: false, theme: 'base' });

    (function() {
      var current = 0;
      var total = {{.SlideCount}};
      var sources = [{{range .Slides}}{{.Mermaid}},{{end}}];

      function showSlide(idx) {
        if (idx < 0) idx = 0;
        if (idx >= total) idx = total - 1;
        document.querySelectorAll('.slide-panel').forEach(function(p) {
          p.classList.remove('active');
        });
        document.getElementById('slide-' + idx).classList.add('active');
        document.getElementById('slide-counter').textContent = (idx + 1) + ' / ' + total;
        document.getElementById('slide-select').value = idx;
        current = idx;
      }

      // Panels stay visible until Mermaid has measured them.
      mermaid.run().then(function() {
        document.querySelectorAll('.slide-panel').forEach(function(p) {
          p.classList.add('ready');
        });
      });

      showSlide(0);

      document.getElementById('prev-btn').addEventListener('click', function() {
        showSlide(current - 1);
      });
      document.getElementById('next-btn').addEventListener('click', function() {
        showSlide(current + 1);
      });
      document.getElementById('slide-select').addEventListener('change', function() {
        showSlide(parseInt(this.value, 10));
      });
      document.addEventListener('keydown', function(e) {
        if (e.key === 'ArrowLeft') { showSlide(current - 1); }
        if (e.key === 'ArrowRight') { showSlide(current + 1); }
      });
      document.getElementById('copy-src').addEventListener('click', function() {
        navigator.clipboard.writeText(sources[current]).then(function() {
          var btn = document.getElementById('copy-src');
          var orig = btn.textContent;
          btn.textContent = 'Copied!';
          setTimeout(function() { btn.textContent = orig; }, 1500);
        });
      });
    })();
  </script>
</body>
</html>
`

// slideEntry holds data for a single slide in the template.
type slideEntry struct {
	Index   int
	Title   string
	Mermaid string
}

// reportData holds all data passed to the report HTML template.
type reportData struct {
	Slides     []slideEntry
	SlideCount int
	Summary    string
}

// NewHandler builds the report routes: the HTML page at "/", the Mermaid
// source of one slide at "/mermaid.md?slide=N" and the text summary at
// "/summary.txt".
func NewHandler(slides []report.Slide, summary string, logger *slog.Logger) (http.Handler, error) {
	if len(slides) == 0 {
		return nil, errors.New("no slides to serve")
	}

	tmpl, err := template.New("report").Parse(reportHTMLTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing report HTML template: %w", err)
	}

	entries := make([]slideEntry, len(slides))
	for i, s := range slides {
		entries[i] = slideEntry{
			Index:   i,
			Title:   s.Title,
			Mermaid: s.Mermaid,
		}
	}
	data := reportData{
		Slides:     entries,
		SlideCount: len(slides),
		Summary:    summary,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request received", "method", r.Method, "path", r.URL.Path)
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			logger.Error("failed to render report template", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	})

	mux.HandleFunc("/mermaid.md", func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request received", "method", r.Method, "path", r.URL.Path)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		idx := 0
		if q := r.URL.Query().Get("slide"); q != "" {
			if n, err := strconv.Atoi(q); err == nil && n >= 0 && n < len(slides) {
				idx = n
			}
		}
		_, _ = w.Write([]byte(slides[idx].Mermaid))
	})

	mux.HandleFunc("/summary.txt", func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request received", "method", r.Method, "path", r.URL.Path)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(summary))
	})

	return mux, nil
}

// Serve starts the HTTP server for the partition report.
// It blocks until the context is cancelled.
func Serve(ctx context.Context, slides []report.Slide, summary string, port int, openBrowser bool, logger *slog.Logger) error {
	logger = logger.With("component", "server")

	handler, err := NewHandler(slides, summary, logger)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	url := fmt.Sprintf("http://localhost:%d", port)
	logger.Info("starting HTTP server", "addr", url, "slideCount", len(slides))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
		close(errCh)
	}()

	if openBrowser {
		openInBrowser(url, logger)
	}

	// Block until the context is cancelled or the server fails.
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		return nil
	}
}

// openInBrowser opens the given URL in the default system browser.
func openInBrowser(url string, logger *slog.Logger) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	default:
		logger.Warn("unsupported platform for opening browser", "os", runtime.GOOS)
		return
	}

	if err := cmd.Start(); err != nil {
		logger.Warn("failed to open browser", "error", err)
	}
}
