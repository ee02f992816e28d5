package archive

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestGCSSignedURL(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	g, err := NewGCS(context.Background(), "pulse-archive", "", option.WithoutAuthentication())
	require.NoError(t, err)
	defer g.Close()
	g.GoogleAccessID = "pulse@example.iam.gserviceaccount.com"
	g.PrivateKey = pemKey

	raw, err := g.SignedURL(KindAudio, "IL", "IL_20250101_093000_analysis.mp3", 15*time.Minute)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/pulse-archive/audio/IL/IL_20250101_093000_analysis.mp3", u.Path)
	assert.NotEmpty(t, u.Query().Get("X-Goog-Signature"))
	assert.NotEmpty(t, u.Query().Get("X-Goog-Expires"))

	_, err = g.SignedURL(KindAudio, "IL", "LB_20250101_093000_analysis.mp3", time.Minute)
	assert.ErrorIs(t, err, ErrInvalidName)
}
