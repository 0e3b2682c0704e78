//go:build integration

package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRodExtractor_Integration(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `<html><body><nav>menu</nav><main><h1>Hello World</h1></main></body></html>`)
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	r := NewRodExtractor(RodConfig{Headless: true, NavigationTimeout: 10 * time.Second})
	require.NoError(t, r.Start(ctx))
	defer r.Close()

	text, err := r.ExtractText(ctx, Tab{URL: ts.URL})
	require.NoError(t, err)
	assert.Equal(t, "Hello World", strings.TrimSpace(text))

	src, err := r.ExtractHTML(ctx, Tab{URL: ts.URL})
	require.NoError(t, err)
	assert.Contains(t, src, "<main>")
}
