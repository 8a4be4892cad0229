package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/bookx/internal/models"
	"github.com/desertthunder/bookx/internal/shared"
	tu "github.com/desertthunder/bookx/internal/testing"
)

const (
	isbnKokoro = "9784101010137"
	isbnNeko   = "9784003101018"
	isbnSanshi = "9784101010106"
)

const kokoroFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" version="2.0">
<channel>
<title>9784101010137</title>
<item>
<title>こころ</title>
<link>https://ndlsearch.ndl.go.jp/books/R100000002-I000000123456</link>
<dc:creator>夏目, 漱石, 1867-1916</dc:creator>
<dc:publisher>新潮社</dc:publisher>
<dcterms:issued>2004</dcterms:issued>
</item>
</channel>
</rss>`

const emptyFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>none</title></channel></rss>`

// fakeCalil serves the Calil session probe, token and list endpoints plus the NDL search.
// Only the cookie sid=good is accepted.
type fakeCalil struct {
	lists map[models.ListType][]map[string]string
}

func newFakeCalil() *fakeCalil {
	return &fakeCalil{lists: map[models.ListType][]map[string]string{
		models.ListWish: {
			{"isbn": isbnKokoro, "title": "こころ", "author": "夏目漱石"},
			{"isbn": isbnNeko, "title": "吾輩は猫である", "author": "夏目漱石"},
			{"isbn": isbnSanshi, "title": "三四郎", "author": "夏目漱石"},
		},
		models.ListRead: {
			{"isbn": isbnNeko, "title": "吾輩は猫である", "author": "夏目漱石"},
		},
	}}
}

func (f *fakeCalil) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	loggedIn := strings.Contains(r.Header.Get("Cookie"), "sid=good")
	authorized := r.Header.Get("Authorization") == "Bearer tok"

	switch r.URL.Path {
	case "/":
		if !loggedIn {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case "/api/token":
		if !loggedIn {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"access_token":"tok","token_type":"Bearer","expires_in":600}`)
	case "/api/list/meta", "/api/list":
		if !authorized {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req struct {
			ListType models.ListType `json:"list_type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		books := f.lists[req.ListType]
		if r.URL.Path == "/api/list/meta" {
			fmt.Fprintf(w, `{"total":%d}`, len(books))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"books": books})
	case "/api/me":
		if !authorized {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"name":"reader"}`)
	case "/api/opensearch":
		if r.URL.Query().Get("isbn") == isbnKokoro {
			fmt.Fprint(w, kokoroFeed)
			return
		}
		fmt.Fprint(w, emptyFeed)
	default:
		http.NotFound(w, r)
	}
}

type testEnv struct {
	dir    string
	hits   *tu.HitCounter
	runner *Runner
	output *bytes.Buffer
}

// newTestEnv points every path at a temp dir and both upstreams at one fake server.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	hits := tu.NewHitCounter(newFakeCalil(), "/api/opensearch", "/api/token")
	srv := httptest.NewServer(hits)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	config := shared.DefaultConfig()
	config.Calil.BaseURL = srv.URL
	config.NDL.BaseURL = srv.URL
	config.NDL.RateLimit = 0
	config.Session.Path = filepath.Join(dir, "session.json")
	config.Browser.ProfileDir = filepath.Join(dir, "profile")
	config.Browser.EndpointFile = filepath.Join(dir, "endpoint")
	config.Covers.Dir = filepath.Join(dir, "covers")
	config.Database.Path = filepath.Join(dir, "bookx.db")

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config:     config,
		HTTPClient: srv.Client(),
		Logger:     shared.NewLogger(io.Discard),
		Output:     output,
	})
	t.Cleanup(func() { runner.Release() })

	return &testEnv{dir: dir, hits: hits, runner: runner, output: output}
}

// run executes the CLI with a --config path that does not exist, so the test config stays in place.
func (e *testEnv) run(t *testing.T, args ...string) error {
	t.Helper()
	e.output.Reset()
	argv := append([]string{"bookx", "--config", filepath.Join(e.dir, "missing.toml")}, args...)
	return newApp(e.runner).Run(context.Background(), argv)
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	if err := e.run(t, "auth", "import", "--cookie", "sid=good; theme=dark"); err != nil {
		t.Fatalf("import failed: %v", err)
	}
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.ensurer == nil || runner.retrier == nil || runner.lists == nil {
				t.Error("expected session components to be built")
			}
			if runner.ndl == nil || runner.covers == nil {
				t.Error("expected catalogue components to be built")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})
			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{HTTPClient: nil})
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})

		t.Run("invalid headless policy keeps previous components", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard)})
			before := runner.ensurer

			config := shared.DefaultConfig()
			config.Browser.Headless = "sometimes"
			err := runner.Configure(config)
			if !errors.Is(err, shared.ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if runner.ensurer != before {
				t.Error("expected components to be left alone")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON([]int{1, 2}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "[1,2]\n" {
				t.Errorf("unexpected output %q", output.String())
			}
		})

		t.Run("returns error on unmarshalable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("returns error when writer fails", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
			err := runner.writeJSON("x", false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("formats output", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("%s: %d\n", "books", 3); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "books: 3\n" {
				t.Errorf("unexpected output %q", output.String())
			}
		})

		t.Run("writePlainln surrounds with newlines", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			runner.writePlainln("Next steps:")
			if output.String() != "\nNext steps:\n" {
				t.Errorf("unexpected output %q", output.String())
			}
		})

		t.Run("returns error when writer fails", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
			if err := runner.writePlain("x"); err == nil {
				t.Error("expected error")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		want := []string{"setup", "auth", "lists", "books", "api", "serve", "tui"}
		if len(commands) != len(want) {
			t.Fatalf("expected %d commands, got %d", len(want), len(commands))
		}
		for i, name := range want {
			if commands[i].Name != name {
				t.Errorf("command %d: expected %s, got %s", i, name, commands[i].Name)
			}
		}
	})
}

func TestParseListTypes(t *testing.T) {
	t.Run("defaults to every list", func(t *testing.T) {
		types, err := parseListTypes(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(types) != 2 || types[0] != models.ListWish || types[1] != models.ListRead {
			t.Errorf("unexpected types %v", types)
		}
	})

	t.Run("parses given names", func(t *testing.T) {
		types, err := parseListTypes([]string{"read"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(types) != 1 || types[0] != models.ListRead {
			t.Errorf("unexpected types %v", types)
		}
	})

	t.Run("rejects unknown names", func(t *testing.T) {
		_, err := parseListTypes([]string{"wish", "owned"})
		if !errors.Is(err, shared.ErrInvalidListType) {
			t.Errorf("expected ErrInvalidListType, got %v", err)
		}
	})
}

func TestSetupCommands(t *testing.T) {
	t.Run("config writes the example file once", func(t *testing.T) {
		env := newTestEnv(t)
		path := filepath.Join(env.dir, "config.toml")
		argv := []string{"bookx", "--config", path, "setup", "config"}

		if err := newApp(env.runner).Run(context.Background(), argv); err != nil {
			t.Fatalf("setup config failed: %v", err)
		}
		tu.AssertFileExists(t, path)
		if !strings.Contains(tu.MustReadFile(t, path), "[calil]") {
			t.Error("expected example config content")
		}

		err := newApp(env.runner).Run(context.Background(), argv)
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument on second run, got %v", err)
		}

		argv = append(argv, "--force")
		if err := newApp(env.runner).Run(context.Background(), argv); err != nil {
			t.Errorf("expected --force to overwrite, got %v", err)
		}
	})

	t.Run("database creates the cache file", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run(t, "setup", "database"); err != nil {
			t.Fatalf("setup database failed: %v", err)
		}
		tu.AssertFileExists(t, filepath.Join(env.dir, "bookx.db"))
		if !strings.Contains(env.output.String(), "Database ready") {
			t.Errorf("unexpected output %q", env.output.String())
		}

		if err := env.run(t, "setup", "database", "--rollback"); err != nil {
			t.Fatalf("rollback failed: %v", err)
		}
		if !strings.Contains(env.output.String(), "Rolled back") {
			t.Errorf("unexpected output %q", env.output.String())
		}
	})
}

func TestAuthCommands(t *testing.T) {
	t.Run("status without a session", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run(t, "auth", "status", "--json"); err != nil {
			t.Fatalf("status failed: %v", err)
		}

		var st struct {
			Authenticated bool `json:"authenticated"`
			Cookies       int  `json:"cookies"`
		}
		if err := json.Unmarshal(env.output.Bytes(), &st); err != nil {
			t.Fatalf("invalid JSON %q: %v", env.output.String(), err)
		}
		if st.Authenticated || st.Cookies != 0 {
			t.Errorf("expected no session, got %+v", st)
		}
	})

	t.Run("import keeps the accepted cookie", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t)

		if !strings.Contains(env.output.String(), "Session imported (1 cookies") {
			t.Errorf("unexpected output %q", env.output.String())
		}
		tu.AssertFileExists(t, filepath.Join(env.dir, "session.json"))

		if err := env.run(t, "auth", "status"); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if !strings.Contains(env.output.String(), "✓ Authenticated") {
			t.Errorf("expected authenticated status, got %q", env.output.String())
		}
	})

	t.Run("import from a cURL command", func(t *testing.T) {
		env := newTestEnv(t)
		curl := fmt.Sprintf(`curl '%s/' -H 'cookie: sid=good'`, env.runner.config.Calil.BaseURL)
		if err := env.run(t, "auth", "import", "--curl", curl); err != nil {
			t.Fatalf("import failed: %v", err)
		}
		tu.AssertFileExists(t, filepath.Join(env.dir, "session.json"))
	})

	t.Run("import rejects refused cookies", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.run(t, "auth", "import", "--cookie", "sid=stale")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
		tu.AssertNoFile(t, filepath.Join(env.dir, "session.json"))
	})

	t.Run("import argument validation", func(t *testing.T) {
		env := newTestEnv(t)

		if err := env.run(t, "auth", "import"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		err := env.run(t, "auth", "import", "--cookie", "sid=good", "--curl", "curl x")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("logout removes the session", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t)

		if err := env.run(t, "auth", "logout"); err != nil {
			t.Fatalf("logout failed: %v", err)
		}
		tu.AssertNoFile(t, filepath.Join(env.dir, "session.json"))
	})
}

func TestListsCommands(t *testing.T) {
	t.Run("count from Calil", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t)

		if err := env.run(t, "lists", "count", "--json"); err != nil {
			t.Fatalf("count failed: %v", err)
		}

		var counts []listCount
		if err := json.Unmarshal(env.output.Bytes(), &counts); err != nil {
			t.Fatalf("invalid JSON %q: %v", env.output.String(), err)
		}
		if len(counts) != 2 || counts[0].Count != 3 || counts[1].Count != 1 {
			t.Errorf("unexpected counts %+v", counts)
		}		if n := env.hits.Hits("/api/token"); n != 1 {
			t.Errorf("expected one token mint for both lists, got %d", n)
		}
	})

	t.Run("show one list", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t)

		if err := env.run(t, "lists", "show", "--json", "wish"); err != nil {
			t.Fatalf("show failed: %v", err)
		}

		var books []models.Book
		if err := json.Unmarshal(env.output.Bytes(), &books); err != nil {
			t.Fatalf("invalid JSON %q: %v", env.output.String(), err)
		}
		if len(books) != 3 || books[2].Position != 3 || books[2].ISBN != isbnSanshi {
			t.Errorf("unexpected books %+v", books)
		}
	})

	t.Run("show requires a list type", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run(t, "lists", "show"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if err := env.run(t, "lists", "show", "owned"); !errors.Is(err, shared.ErrInvalidListType) {
			t.Errorf("expected ErrInvalidListType, got %v", err)
		}
	})

	t.Run("sync fills the cache", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t)

		if err := env.run(t, "lists", "sync", "wish"); err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		out := env.output.String()
		if !strings.Contains(out, "Sync Complete!") || !strings.Contains(out, "3 books, 1 looked up, 2 not on NDL") {
			t.Errorf("unexpected output %q", out)
		}

		if err := env.run(t, "lists", "count", "--cached", "--json"); err != nil {
			t.Fatalf("cached count failed: %v", err)
		}
		var counts []listCount
		if err := json.Unmarshal(env.output.Bytes(), &counts); err != nil {
			t.Fatalf("invalid JSON %q: %v", env.output.String(), err)
		}
		if counts[0].Count != 3 || counts[0].SyncedAt.IsZero() {
			t.Errorf("expected synced wish list, got %+v", counts[0])
		}
		if counts[1].Count != 0 {
			t.Errorf("expected unsynced read list, got %+v", counts[1])
		}
	})

	t.Run("export writes files", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t)
		if err := env.run(t, "lists", "sync"); err != nil {
			t.Fatalf("sync failed: %v", err)
		}

		out := filepath.Join(env.dir, "export")
		if err := env.run(t, "lists", "export", "--format", "csv", "--output", out); err != nil {
			t.Fatalf("export failed: %v", err)
		}
		tu.AssertFileExists(t, filepath.Join(out, "wish_books.csv"))
		tu.AssertFileExists(t, filepath.Join(out, "read_books.csv"))
		tu.AssertFileExists(t, filepath.Join(out, "export_manifest.json"))
		if !strings.Contains(env.output.String(), "Exported: 2/2 lists") {
			t.Errorf("unexpected output %q", env.output.String())
		}
	})

	t.Run("export rejects unknown formats", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run(t, "lists", "export", "--format", "xml"); err == nil {
			t.Error("expected error")
		}
	})
}

func TestBooksCommands(t *testing.T) {
	t.Run("lookup caches the record", func(t *testing.T) {
		env := newTestEnv(t)

		for range 2 {
			if err := env.run(t, "books", "lookup", "--json", "978-4-10-101013-7"); err != nil {
				t.Fatalf("lookup failed: %v", err)
			}
		}
		if n := env.hits.Hits("/api/opensearch"); n != 1 {
			t.Errorf("expected one NDL request, got %d", n)
		}

		var bib models.Bibliography
		if err := json.Unmarshal(env.output.Bytes(), &bib); err != nil {
			t.Fatalf("invalid JSON %q: %v", env.output.String(), err)
		}
		if bib.Title != "こころ" || bib.ISBN != isbnKokoro {
			t.Errorf("unexpected record %+v", bib)
		}
	})

	t.Run("lookup of an unknown ISBN", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.run(t, "books", "lookup", isbnNeko)
		if !errors.Is(err, shared.ErrBookNotFound) {
			t.Errorf("expected ErrBookNotFound, got %v", err)
		}
	})

	t.Run("lookup rejects malformed ISBNs", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run(t, "books", "lookup", "12345"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestAPICommands(t *testing.T) {
	t.Run("get sends session credentials", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t)

		if err := env.run(t, "api", "get", "--pretty=false", "api/me"); err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if env.output.String() != `{"name":"reader"}`+"\n" {
			t.Errorf("unexpected output %q", env.output.String())
		}
	})

	t.Run("post validates the body", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.run(t, "api", "post", "--data", "{not json", "/api/list/meta")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("post returns the response", func(t *testing.T) {
		env := newTestEnv(t)
		env.login(t)

		err := env.run(t, "api", "post", "--data", `{"list_type":"read"}`, "/api/list/meta")
		if err != nil {
			t.Fatalf("post failed: %v", err)
		}
		if !strings.Contains(env.output.String(), `"total": 1`) {
			t.Errorf("unexpected output %q", env.output.String())
		}
	})
}
