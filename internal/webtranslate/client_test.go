package webtranslate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Translate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "gtx", r.PostForm.Get("client"))
		assert.Equal(t, "kn", r.PostForm.Get("sl"))
		assert.Equal(t, "en", r.PostForm.Get("tl"))
		assert.Equal(t, "t", r.PostForm.Get("dt"))
		assert.Equal(t, "ನಮಸ್ಕಾರ. ಜಮೀನು", r.PostForm.Get("q"))

		_, _ = w.Write([]byte(`[[["Hello. ","ನಮಸ್ಕಾರ. ",null,null,10],["Land","ಜಮೀನು",null,null,10]],null,"kn"]`))
	}))
	defer srv.Close()

	client := New(srv.URL, srv.Client())
	out, err := client.Translate(context.Background(), "ನಮಸ್ಕಾರ. ಜಮೀನು", "kn", "en")
	require.NoError(t, err)
	assert.Equal(t, "Hello. Land", out)
}

func TestClient_Translate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"rate limited", http.StatusTooManyRequests, "<html>sorry</html>"},
		{"not json", http.StatusOK, "<html>captcha</html>"},
		{"empty array", http.StatusOK, "[]"},
		{"no segments", http.StatusOK, "[[],null,\"kn\"]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New(srv.URL, srv.Client()).Translate(context.Background(), "text", "kn", "en")
			assert.Error(t, err)
		})
	}
}

func TestClient_Translate_InvalidLanguage(t *testing.T) {
	client := New("http://127.0.0.1:0", nil)

	_, err := client.Translate(context.Background(), "text", "not a language", "en")
	assert.ErrorContains(t, err, "invalid language code")
}

func TestClient_Translate_SplitsLongText(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`[[["x",null]]]`))
	}))
	defer srv.Close()

	line := strings.Repeat("a", 3000) + "\n"
	text := line + line + line

	out, err := New(srv.URL, srv.Client()).Translate(context.Background(), text, AutoDetect, "en")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "xxx", out)
}

func TestSplitQuery(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitQuery("short", 10))

	pieces := splitQuery("aaaa\nbbbb\ncccc", 6)
	assert.Equal(t, []string{"aaaa\n", "bbbb\n", "cccc"}, pieces)

	noBreak := strings.Repeat("ಕ", 25)
	pieces = splitQuery(noBreak, 10)
	require.Len(t, pieces, 3)
	assert.Equal(t, noBreak, strings.Join(pieces, ""))
}
