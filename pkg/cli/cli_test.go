package cli

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"lifelog-migrate/pkg/config"
	"lifelog-migrate/pkg/domain"
)

const (
	lifelogsURL      = "https://api.limitless.ai/v1/lifelogs"
	conversationsURL = "https://api.omi.me/v1/dev/user/conversations"
)

func setupHTTPMock(t *testing.T) {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

const dayJSON = `{"data":{"lifelogs":[
 {"id":"l1","title":"Standup","startTime":"2025-01-15T09:00:00-08:00","endTime":"2025-01-15T09:15:00-08:00",
  "contents":[{"type":"heading1","content":"Standup"},
              {"type":"blockquote","content":"morning all","speakerName":"Ana","startOffsetMs":0,"endOffsetMs":1500},
              {"type":"blockquote","content":"hi","speakerName":"Ben","startOffsetMs":1500,"endOffsetMs":2000}]},
 {"id":"l2","title":"","startTime":"2025-01-15T12:00:00-08:00","endTime":"2025-01-15T12:05:00-08:00",
  "contents":[{"type":"heading2","content":"Summary only"}]}
]},"meta":{"lifelogs":{"nextCursor":null,"count":2}}}`

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{
		"--limitless-api-key", "lk", "--omi-api-key", "ok", "--rpm", "6000", "--timezone", "UTC",
	}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRoot_ImportsDayAndArchivesReport(t *testing.T) {
	setupHTTPMock(t)
	httpmock.RegisterResponder("GET", lifelogsURL, httpmock.NewStringResponder(http.StatusOK, dayJSON))

	var uploaded []domain.Conversation
	httpmock.RegisterResponder("POST", conversationsURL+"/from-segments",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer ok", req.Header.Get("Authorization"))
			var conv domain.Conversation
			require.NoError(t, json.NewDecoder(req.Body).Decode(&conv))
			uploaded = append(uploaded, conv)
			return httpmock.NewStringResponse(http.StatusOK, `{"id":"conv-1","status":"completed"}`), nil
		})

	dbPath := filepath.Join(t.TempDir(), "runs.db")
	out, err := execute(t, "", "--date", "2025-01-15", "--yes", "--report-sqlite", dbPath)
	require.NoError(t, err)

	require.Len(t, uploaded, 1)
	assert.Equal(t, "SPEAKER_01", uploaded[0].TranscriptSegments[1].Speaker)
	assert.Equal(t, "2025-01-15T09:00:00-08:00", uploaded[0].StartedAt)
	assert.Contains(t, out, "Import complete")

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()
	var success, skipped int
	require.NoError(t, db.QueryRow("SELECT success, skipped FROM import_run").Scan(&success, &skipped))
	assert.Equal(t, 1, success)
	assert.Equal(t, 1, skipped)
}

func TestRoot_DryRunDoesNotUpload(t *testing.T) {
	setupHTTPMock(t)
	httpmock.RegisterResponder("GET", lifelogsURL, httpmock.NewStringResponder(http.StatusOK, dayJSON))

	out, err := execute(t, "", "--date", "2025-01-15", "--dry-run")
	require.NoError(t, err)

	assert.Zero(t, httpmock.GetCallCountInfo()["POST "+conversationsURL+"/from-segments"])
	assert.Contains(t, out, "SPEAKER_00: morning all")
	assert.Contains(t, out, "Nothing was uploaded")
}

func TestRoot_DeclinedConfirmation(t *testing.T) {
	setupHTTPMock(t)
	httpmock.RegisterResponder("GET", lifelogsURL, httpmock.NewStringResponder(http.StatusOK, dayJSON))
	var posts atomic.Int32
	httpmock.RegisterResponder("POST", conversationsURL+"/from-segments",
		func(req *http.Request) (*http.Response, error) {
			posts.Add(1)
			return httpmock.NewStringResponse(http.StatusOK, `{"id":"x"}`), nil
		})

	out, err := execute(t, "n\n", "--date", "2025-01-15")
	require.NoError(t, err)
	assert.Zero(t, posts.Load())
	assert.Contains(t, out, "Create 1 Omi conversations? [y/N]")
	assert.Contains(t, out, "Import cancelled")
}

func TestRoot_NothingToImport(t *testing.T) {
	setupHTTPMock(t)
	httpmock.RegisterResponder("GET", lifelogsURL,
		httpmock.NewStringResponder(http.StatusOK, `{"data":{"lifelogs":[]},"meta":{"lifelogs":{"nextCursor":null}}}`))

	out, err := execute(t, "", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "no lifelogs found")
}

func TestRoot_MissingCredentials(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("LIFELOG_MIGRATE_LIMITLESS_API_KEY", "")
	t.Setenv("LIFELOG_MIGRATE_OMI_API_KEY", "")
	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--dry-run"})
	assert.ErrorIs(t, cmd.Execute(), config.ErrMissingCredentials)
}

func TestConfirm(t *testing.T) {
	for input, want := range map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "": false, "maybe\n": false} {
		var out bytes.Buffer
		got, err := confirm(strings.NewReader(input), &out, "Go?")
		require.NoError(t, err)
		assert.Equal(t, want, got, fmt.Sprintf("input %q", input))
		assert.Equal(t, "Go? [y/N] ", out.String())
	}
}

func TestOmiList(t *testing.T) {
	setupHTTPMock(t)
	httpmock.RegisterResponder("GET", conversationsURL,
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "5", req.URL.Query().Get("limit"))
			return httpmock.NewStringResponse(http.StatusOK,
				`[{"id":"c1","started_at":"2025-01-15T09:00:00Z","source":"phone","structured":{"title":"Standup"}}]`), nil
		})

	cmd := NewOmiListCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--omi-api-key", "ok", "-n", "5"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "c1")
	assert.Contains(t, out.String(), "Standup")
}

func TestOpenSinkNone(t *testing.T) {
	sink, closeFn, err := openSink(context.Background(), config.Report{}, nil)
	require.NoError(t, err)
	assert.Nil(t, sink)
	closeFn()
}
