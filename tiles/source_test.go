package tiles

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewURLSourceValidatesTemplate(t *testing.T) {
	_, err := NewURLSource("https://tiles.example.com/{z}/{x}/{y}.png")
	require.NoError(t, err)

	_, err = NewURLSource("https://tiles.example.com/{z}/{x}.png")
	require.Error(t, err)
}

func TestURLSourceURL(t *testing.T) {
	source, err := NewURLSource("https://tiles.example.com/{z}/{x}/{y}.png")
	require.NoError(t, err)
	require.Equal(t, "https://tiles.example.com/3/5/2.png", source.URL(3, 5, 2))
}

func TestURLSourceTile(t *testing.T) {
	payload := pngTile(t, 8, 8)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/1/0/0.png":
			w.Write(payload)
		case "/1/0/1.png":
			w.WriteHeader(http.StatusNotFound)
		case "/1/1/1.png":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer server.Close()

	source, err := NewURLSource(server.URL + "/{z}/{x}/{y}.png")
	require.NoError(t, err)
	ctx := context.Background()

	data, err := source.Tile(ctx, 1, 0, 0)
	require.NoError(t, err)
	require.Equal(t, payload, data)

	data, err = source.Tile(ctx, 1, 0, 1)
	require.NoError(t, err)
	require.Nil(t, data)

	data, err = source.Tile(ctx, 1, 1, 0)
	require.NoError(t, err)
	require.Nil(t, data)

	_, err = source.Tile(ctx, 1, 1, 1)
	require.Error(t, err)
}
