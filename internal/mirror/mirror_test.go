package mirror

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestCountRemoteDirs(t *testing.T) {
	tests := []struct {
		name     string
		listing  string
		expected int
	}{
		{
			name:     "directories and files mixed",
			listing:  "112100001/\n112100002/\nreadme.txt\n112100003/\n",
			expected: 3,
		},
		{
			name:     "trailing whitespace",
			listing:  "  a/  \n b/ \n",
			expected: 2,
		},
		{
			name:     "empty listing",
			listing:  "",
			expected: 0,
		},
		{
			name:     "files only",
			listing:  "a.xml\nb.xml\n",
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountRemoteDirs(tt.listing); got != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestLocalDirName(t *testing.T) {
	tests := []struct {
		remotePath string
		expected   string
	}{
		{"/patent/114/PatentPubXML_114_01", "PatentPubXML_114_01"},
		{"/patent/114/PatentPubXML_114_01/", "PatentPubXML_114_01"},
		{"/", "ftps_root"},
		{"", "ftps_root"},
	}

	for _, tt := range tests {
		t.Run(tt.remotePath, func(t *testing.T) {
			if got := LocalDirName(tt.remotePath); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestSplitFTPSURL(t *testing.T) {
	host, path, err := splitFTPSURL("ftps://opendata.tipo.gov.tw/patent/114/week1")
	if err != nil {
		t.Fatalf("splitFTPSURL failed: %v", err)
	}
	if host != "opendata.tipo.gov.tw" || path != "/patent/114/week1" {
		t.Errorf("Unexpected split: host=%s path=%s", host, path)
	}

	for _, bad := range []string{"https://example.com/x", "ftps://", "://nope"} {
		if _, _, err := splitFTPSURL(bad); err == nil {
			t.Errorf("Expected error for %q, got nil", bad)
		}
	}
}

func TestNewLftpNotFound(t *testing.T) {
	t.Setenv("LFTP_PATH", "")
	t.Setenv("PATH", t.TempDir())

	if _, err := New(t.TempDir(), 8); !errors.Is(err, ErrLftpNotFound) {
		t.Errorf("Expected ErrLftpNotFound, got %v", err)
	}
}

// writeFakeLftp installs a stub lftp that prints a fixed cls listing and
// succeeds on mirror commands.
func writeFakeLftp(t *testing.T, exitCode int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "lftp")

	script := fmt.Sprintf(`#!/bin/sh
case "$2" in
  *"cls -1"*)
    printf '112100001/\n112100002/\n'
    ;;
esac
exit %d
`, exitCode)
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("Failed to write fake lftp: %v", err)
	}
	return path
}

func TestMirrorAll(t *testing.T) {
	t.Setenv("LFTP_PATH", writeFakeLftp(t, 0))

	root := t.TempDir()
	m, err := New(root, 2)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	links := []string{
		"ftps://opendata.tipo.gov.tw/patent/114/PatentPubXML_114_01",
		"ftps://opendata.tipo.gov.tw/patent/114/PatentPubXML_114_02",
	}

	summary, err := m.MirrorAll(context.Background(), links)
	if err != nil {
		t.Fatalf("MirrorAll failed: %v", err)
	}

	if summary.Total != 2 || summary.Mirrored != 2 || summary.Failed != 0 {
		t.Errorf("Unexpected summary: %+v", summary)
	}

	// Each link gets its own destination under the root.
	for _, dir := range []string{"PatentPubXML_114_01", "PatentPubXML_114_02"} {
		if _, err := os.Stat(filepath.Join(root, dir)); err != nil {
			t.Errorf("Expected destination directory %s: %v", dir, err)
		}
	}

	for _, result := range summary.Results {
		if result.RemoteDirs != 2 {
			t.Errorf("Expected remote count 2 for %s, got %d", result.URL, result.RemoteDirs)
		}
	}
}

func TestMirrorAllAllFail(t *testing.T) {
	t.Setenv("LFTP_PATH", writeFakeLftp(t, 1))

	m, err := New(t.TempDir(), 2)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	links := []string{"ftps://opendata.tipo.gov.tw/patent/114/PatentPubXML_114_01"}

	summary, err := m.MirrorAll(context.Background(), links)
	if !errors.Is(err, ErrAllMirrorsFailed) {
		t.Errorf("Expected ErrAllMirrorsFailed, got %v", err)
	}
	if summary.Skipped != 1 {
		t.Errorf("Expected link skipped after failed listing, got %+v", summary)
	}
}
