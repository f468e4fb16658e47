package release

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestParseReference checks that only dir+bosh urls become local references.
func TestParseReference(t *testing.T) {
	t.Parallel()

	cases := []struct {
		url  string
		want Reference
	}{
		{
			url:  "dir+bosh:///home/me/cf-release",
			want: Local{Name: "cf", Version: "latest", HostDir: "/home/me/cf-release"},
		},
		{
			url:  "https://bosh.io/d/github.com/cloudfoundry/cf-release",
			want: Remote{Name: "cf", Version: "latest", URL: "https://bosh.io/d/github.com/cloudfoundry/cf-release"},
		},
		{
			url:  "dir:///var/releases/cf",
			want: Remote{Name: "cf", Version: "latest", URL: "dir:///var/releases/cf"},
		},
		{
			url:  "dir+bosh://",
			want: Remote{Name: "cf", Version: "latest", URL: "dir+bosh://"},
		},
		{
			url:  "",
			want: Remote{Name: "cf", Version: "latest"},
		},
	}

	for _, tc := range cases {
		got := ParseReference("cf", "latest", tc.url)
		require.Equal(t, tc.want, got, tc.url)
		require.Equal(t, "cf", got.ReleaseName())
	}
}

// TestUploadableLifecycle follows a local release through to its manifest fragment.
func TestUploadableLifecycle(t *testing.T) {
	t.Parallel()

	up := NewUploadable(Local{Name: "foo", Version: "latest", HostDir: "/h"}, "/opt/vagrant-bosh/synced-releases")
	require.Equal(t, "/opt/vagrant-bosh/synced-releases/foo", up.GuestDir)
	require.True(t, up.NeedsBuild())

	up.Version = "12+dev.3"
	require.False(t, up.NeedsBuild())

	uploaded := Uploaded{Name: up.Name, Version: "3", GuestDir: up.GuestDir}
	require.Equal(t, Fragment{
		Name:    "foo",
		Version: "3",
		URL:     "dir:///opt/vagrant-bosh/synced-releases/foo",
	}, uploaded.Fragment())
}
