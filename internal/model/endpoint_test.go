package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEndpointSlug_AcceptsWellFormed(t *testing.T) {
	assert.NoError(t, ValidateEndpointSlug("weather"))
	assert.NoError(t, ValidateEndpointSlug("a"))
}

func TestValidateEndpointSlug_RejectsEmpty(t *testing.T) {
	assert.ErrorIs(t, ValidateEndpointSlug(""), ErrInvalidSlug)
}

func TestValidateEndpointSlug_RejectsTooLong(t *testing.T) {
	long := ""
	for i := 0; i < endpointSlugMaxLen+1; i++ {
		long += "a"
	}
	assert.ErrorIs(t, ValidateEndpointSlug(long), ErrInvalidSlug)
}

func TestValidateEndpointSlug_RejectsInvalidCharset(t *testing.T) {
	assert.ErrorIs(t, ValidateEndpointSlug("Weather"), ErrInvalidSlug)
	assert.ErrorIs(t, ValidateEndpointSlug("weather/forecast"), ErrInvalidSlug)
}

func TestValidateUpstreamURL_AcceptsHTTPS(t *testing.T) {
	assert.NoError(t, ValidateUpstreamURL("https://api.example.com/v1/weather", false, false))
}

func TestValidateUpstreamURL_RejectsUnknownScheme(t *testing.T) {
	assert.ErrorIs(t, ValidateUpstreamURL("ftp://api.example.com", false, false), ErrInvalidUpstreamURL)
}

func TestValidateUpstreamURL_AllowOtherSchemesPermitsUnknownScheme(t *testing.T) {
	assert.NoError(t, ValidateUpstreamURL("ftp://api.example.com", false, true))
}

func TestValidateUpstreamURL_RejectsEmptyHost(t *testing.T) {
	assert.ErrorIs(t, ValidateUpstreamURL("https:///path", false, false), ErrInvalidUpstreamURL)
}

func TestValidateUpstreamURL_RejectsMalformedURL(t *testing.T) {
	assert.ErrorIs(t, ValidateUpstreamURL("http://[::1", false, false), ErrInvalidUpstreamURL)
}

func TestValidateUpstreamURL_RejectsLoopbackHostname(t *testing.T) {
	assert.ErrorIs(t, ValidateUpstreamURL("http://localhost:8080", false, false), ErrInvalidUpstreamURL)
}

func TestValidateUpstreamURL_RejectsLoopbackIP(t *testing.T) {
	assert.ErrorIs(t, ValidateUpstreamURL("http://127.0.0.1:8080", false, false), ErrInvalidUpstreamURL)
}

func TestValidateUpstreamURL_RejectsPrivateIP(t *testing.T) {
	assert.ErrorIs(t, ValidateUpstreamURL("http://10.0.0.5", false, false), ErrInvalidUpstreamURL)
	assert.ErrorIs(t, ValidateUpstreamURL("http://192.168.1.5", false, false), ErrInvalidUpstreamURL)
}

func TestValidateUpstreamURL_AllowLoopbackPermitsLocalIP(t *testing.T) {
	assert.NoError(t, ValidateUpstreamURL("http://127.0.0.1:8080", true, false))
}
