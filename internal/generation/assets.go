// Package generation produces the media assets for a job: the LLM
// script, voiceover audio, scene images, the assembled video, and the
// upload to the hosting service.
package generation

import (
	"fmt"
	"os"
	"path/filepath"
)

// Assets manages the per-job transient files created during generation.
type Assets struct {
	root string
}

// NewAssets creates the asset directory layout under root.
func NewAssets(root string) (*Assets, error) {
	for _, dir := range []string{"audio", "images", "videos"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create asset dir %s: %w", dir, err)
		}
	}
	return &Assets{root: root}, nil
}

// AudioPath returns the voiceover file path for a job.
func (a *Assets) AudioPath(jobID string) string {
	return filepath.Join(a.root, "audio", jobID+".mp3")
}

// ImageDir returns the scene image directory for a job.
func (a *Assets) ImageDir(jobID string) string {
	return filepath.Join(a.root, "images", jobID)
}

// ImagePath returns the path of one scene image.
func (a *Assets) ImagePath(jobID string, sceneIdx int) string {
	return filepath.Join(a.ImageDir(jobID), fmt.Sprintf("scene_%d.png", sceneIdx))
}

// VideoPath returns the rendered video path for a job.
func (a *Assets) VideoPath(jobID string) string {
	return filepath.Join(a.root, "videos", jobID+".mp4")
}

// WriteImage creates the job's image directory if needed and writes the
// image bytes for one scene.
func (a *Assets) WriteImage(jobID string, sceneIdx int, data []byte) (string, error) {
	if err := os.MkdirAll(a.ImageDir(jobID), 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}

	path := a.ImagePath(jobID, sceneIdx)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return path, nil
}

// CleanupJob removes every transient asset belonging to a job,
// including derived video files such as the title-overlaid render.
// Missing files are not an error.
func (a *Assets) CleanupJob(jobID string) error {
	paths := []string{
		a.AudioPath(jobID),
		a.ImageDir(jobID),
	}

	videos, err := filepath.Glob(filepath.Join(a.root, "videos", jobID+"*"))
	if err != nil {
		return fmt.Errorf("list videos for %s: %w", jobID, err)
	}
	paths = append(paths, videos...)

	for _, path := range paths {
		if err := a.Remove(path); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes a single generated file. Missing files are not an error.
func (a *Assets) Remove(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
