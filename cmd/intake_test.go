package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestCollectSubmissions(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "bay1", "note.mp3"), []byte("audio-bytes"))
	writeFile(t, filepath.Join(dir, "bay1", "vin.jpg"), []byte("vin-bytes"))
	writeFile(t, filepath.Join(dir, "bay1", "odometer.png"), []byte("odo-bytes"))
	writeFile(t, filepath.Join(dir, "bay1", "customer.yaml"), []byte("name: jane doe\nphone: 555-0100\n"))

	// No media: skipped.
	writeFile(t, filepath.Join(dir, "bay2", "customer.yaml"), []byte("name: sam\n"))

	// Loose files at the top level are ignored.
	writeFile(t, filepath.Join(dir, "README.txt"), []byte("ignore me"))

	subs, err := collectSubmissions(dir)
	require.NoError(t, err)
	require.Len(t, subs, 1)

	sub := subs[0]
	assert.Equal(t, "bay1", sub.Dir)
	require.Len(t, sub.Submission.Audio, 1)
	assert.Equal(t, "note.mp3", sub.Submission.Audio[0].Filename)
	assert.Equal(t, []byte("audio-bytes"), sub.Submission.Audio[0].Data)
	assert.Equal(t, []byte("vin-bytes"), sub.Submission.VINImage.Data)
	assert.Equal(t, "image/jpeg", sub.Submission.VINImage.MediaType)
	assert.Equal(t, "image/png", sub.Submission.OdometerImage.MediaType)
	assert.Nil(t, sub.Submission.PlateImage.Data)
	assert.Equal(t, "jane doe", sub.Submission.CustomerName)
	assert.Equal(t, "555-0100", sub.Submission.CustomerPhone)
}

func TestCollectSubmissions_MissingDir(t *testing.T) {
	_, err := collectSubmissions(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestBuildDirSubmission_AudioOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "02-second.wav"), []byte("b"))
	writeFile(t, filepath.Join(dir, "01-first.wav"), []byte("a"))

	sub, err := buildDirSubmission(dir)
	require.NoError(t, err)
	require.Len(t, sub.Audio, 2)
	assert.Equal(t, "01-first.wav", sub.Audio[0].Filename)
	assert.Equal(t, "02-second.wav", sub.Audio[1].Filename)
}

func TestBuildDirSubmission_BadYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "customer.yaml"), []byte("name: [unclosed"))

	_, err := buildDirSubmission(dir)
	assert.Error(t, err)
}

func TestReadImageFile_EmptyPath(t *testing.T) {
	img, err := readImageFile("")
	require.NoError(t, err)
	assert.Nil(t, img.Data)
}

func TestIsAudioFile(t *testing.T) {
	assert.True(t, isAudioFile("note.mp3"))
	assert.True(t, isAudioFile("NOTE.WAV"))
	assert.True(t, isAudioFile("clip.m4a"))
	assert.False(t, isAudioFile("vin.jpg"))
	assert.False(t, isAudioFile("customer.yaml"))
}

func TestImageMediaType(t *testing.T) {
	assert.Equal(t, "image/png", imageMediaType("vin.png"))
	assert.Equal(t, "image/webp", imageMediaType("plate.WEBP"))
	assert.Equal(t, "image/jpeg", imageMediaType("odometer.jpg"))
	assert.Equal(t, "image/jpeg", imageMediaType("odometer"))
}
