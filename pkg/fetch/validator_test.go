package fetch

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddrBoundaries(t *testing.T) {
	v := NewValidator()

	blocked := []string{
		"127.0.0.1",
		"127.255.255.255",
		"10.0.0.1",
		"172.16.0.0",
		"172.31.255.255",
		"192.168.1.1",
		"169.254.169.254",
		"100.64.0.0",
		"100.127.255.255",
		"0.0.0.0",
		"::1",
		"fe80::1",
		"fc00::1",
		"fd12:3456::1",
		"fec0::1",
		"::",
	}
	for _, raw := range blocked {
		addr := netip.MustParseAddr(raw)
		assert.Error(t, v.ValidateAddr(addr), "expected %s to be blocked", raw)
	}

	allowed := []string{
		"8.8.8.8",
		"1.1.1.1",
		"172.15.255.255",
		"172.32.0.0",
		"100.63.255.255",
		"100.128.0.0",
		"2001:4860:4860::8888",
	}
	for _, raw := range allowed {
		addr := netip.MustParseAddr(raw)
		assert.NoError(t, v.ValidateAddr(addr), "expected %s to be allowed", raw)
	}
}

func TestValidateAddrUnmapsIPv4InIPv6(t *testing.T) {
	v := NewValidator()
	mapped := netip.MustParseAddr("::ffff:127.0.0.1")
	assert.Error(t, v.ValidateAddr(mapped))
}

func TestValidateURLSchemes(t *testing.T) {
	v := NewValidator()

	assert.Error(t, v.ValidateURL("ftp://example.com/file"))
	assert.Error(t, v.ValidateURL("file:///etc/passwd"))
	assert.Error(t, v.ValidateURL("gopher://example.com"))
	assert.Error(t, v.ValidateURL("://nonsense"))
}

func TestValidateURLBlockedHostnames(t *testing.T) {
	v := NewValidator()

	for _, host := range []string{
		"localhost",
		"LOCALHOST",
		"metadata.google.internal",
		"instance-data.ec2.internal",
	} {
		err := v.ValidateURL("http://" + host + "/path")
		require.Error(t, err, "expected hostname %s to be blocked", host)
	}
}

func TestValidateURLLiteralIPs(t *testing.T) {
	v := NewValidator()

	assert.Error(t, v.ValidateURL("http://127.0.0.1:8080/"))
	assert.Error(t, v.ValidateURL("http://10.1.2.3/"))
	assert.Error(t, v.ValidateURL("http://172.16.0.0/"))
	assert.Error(t, v.ValidateURL("http://172.31.255.255/"))
	assert.Error(t, v.ValidateURL("http://169.254.169.254/latest/meta-data/"))
	assert.Error(t, v.ValidateURL("http://[::1]/"))
	assert.Error(t, v.ValidateURL("http://[fe80::1]/"))

	assert.NoError(t, v.ValidateURL("http://172.15.255.255/"))
	assert.NoError(t, v.ValidateURL("http://172.32.0.0/"))
	assert.NoError(t, v.ValidateURL("https://8.8.8.8/"))
}

func TestValidateURLMissingHostname(t *testing.T) {
	v := NewValidator()
	assert.Error(t, v.ValidateURL("http:///no-host"))
}

func TestValidateDialAddress(t *testing.T) {
	v := NewValidator()

	assert.Error(t, v.ValidateDialAddress("127.0.0.1:80"))
	assert.Error(t, v.ValidateDialAddress("[::1]:443"))
	assert.Error(t, v.ValidateDialAddress("169.254.169.254:80"))
	assert.NoError(t, v.ValidateDialAddress("8.8.8.8:443"))

	assert.Error(t, v.ValidateDialAddress("no-port"))
	assert.Error(t, v.ValidateDialAddress("hostname:80"))
}

func TestPermissiveValidatorStillChecksScheme(t *testing.T) {
	v := NewPermissiveValidator()

	assert.NoError(t, v.ValidateURL("http://127.0.0.1:8080/"))
	assert.NoError(t, v.ValidateURL("http://localhost/"))
	assert.Error(t, v.ValidateURL("file:///etc/passwd"))
}
