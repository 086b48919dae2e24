package generation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/logger"
)

const (
	// outputWidth/Height target vertical short-form video.
	outputWidth  = 1080
	outputHeight = 1920

	// titleWrapWidth and titleMaxLines bound the drawtext title overlay.
	titleWrapWidth = 24
	titleMaxLines  = 3
)

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// Assembler renders the final video from scene images and the voiceover
// track by shelling out to ffmpeg.
type Assembler struct {
	ffmpegPath  string
	ffprobePath string
	runner      commandRunner
	assets      *Assets
	logger      logger.Logger
	stat        func(name string) (os.FileInfo, error)
}

// NewAssembler constructs the production assembler.
func NewAssembler(assets *Assets, log logger.Logger) *Assembler {
	return &Assembler{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		runner:      &execRunner{},
		assets:      assets,
		logger:      log,
		stat:        os.Stat,
	}
}

// probeDuration returns the duration in seconds of a media file.
func (a *Assembler) probeDuration(ctx context.Context, path string) (float64, error) {
	result, err := a.runner.Run(ctx, a.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w (%s)", path, err, strings.TrimSpace(result.Stderr))
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(result.Stdout), 64)
	if err != nil {
		return 0, fmt.Errorf("probe %s: parse duration: %w", path, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("probe %s: non-positive duration", path)
	}
	return duration, nil
}

// AssembleVideo builds a vertical video for the job: each scene image is
// shown for an equal slice of the voiceover duration, with the scene
// text burned in as subtitles. Returns the rendered video path.
func (a *Assembler) AssembleVideo(ctx context.Context, jobID, audioPath string, imagePaths []string, scenes []domain.Scene) (string, error) {
	if len(imagePaths) == 0 {
		return "", fmt.Errorf("assemble video: no scene images")
	}
	for _, path := range imagePaths {
		if _, err := a.stat(path); err != nil {
			return "", fmt.Errorf("assemble video: missing image %s: %w", path, err)
		}
	}

	audioDuration, err := a.probeDuration(ctx, audioPath)
	if err != nil {
		return "", err
	}
	sceneDuration := audioDuration / float64(len(imagePaths))

	outputPath := a.assets.VideoPath(jobID)
	args := a.assembleArgs(audioPath, imagePaths, scenes, sceneDuration, outputPath)

	a.logger.Debug("rendering video",
		logger.String("job_id", jobID),
		logger.Int("scenes", len(imagePaths)),
		logger.Float64("scene_seconds", sceneDuration))

	result, err := a.runner.Run(ctx, a.ffmpegPath, args...)
	if err != nil {
		return "", fmt.Errorf("assemble video: ffmpeg: %w (%s)", err, tailOf(result.Stderr))
	}
	return outputPath, nil
}

// assembleArgs builds the full ffmpeg argument list for a render.
func (a *Assembler) assembleArgs(audioPath string, imagePaths []string, scenes []domain.Scene, sceneDuration float64, outputPath string) []string {
	args := make([]string, 0, len(imagePaths)*4+16)
	args = append(args, "-y")

	for _, path := range imagePaths {
		args = append(args,
			"-loop", "1",
			"-t", formatSeconds(sceneDuration),
			"-i", path,
		)
	}
	args = append(args, "-i", audioPath)

	var filter strings.Builder
	for i := range imagePaths {
		fmt.Fprintf(&filter,
			"[%d:v]scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1",
			i, outputWidth, outputHeight, outputWidth, outputHeight)
		if i < len(scenes) && strings.TrimSpace(scenes[i].Text) != "" {
			fmt.Fprintf(&filter,
				",drawtext=text='%s':fontcolor=white:fontsize=52:borderw=3:bordercolor=black:x=(w-text_w)/2:y=h-420:line_spacing=14",
				escapeForDrawText(wrapText(scenes[i].Text, 30, 4)))
		}
		fmt.Fprintf(&filter, "[v%d];", i)
	}
	for i := range imagePaths {
		fmt.Fprintf(&filter, "[v%d]", i)
	}
	fmt.Fprintf(&filter, "concat=n=%d:v=1:a=0[outv]", len(imagePaths))

	args = append(args,
		"-filter_complex", filter.String(),
		"-map", "[outv]",
		"-map", fmt.Sprintf("%d:a", len(imagePaths)),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-shortest",
		outputPath,
	)
	return args
}

// AddTitleOverlay burns the title banner onto the top of a rendered
// video and returns the path of the new file.
func (a *Assembler) AddTitleOverlay(ctx context.Context, videoPath, title string) (string, error) {
	wrapped := wrapText(title, titleWrapWidth, titleMaxLines)
	if strings.TrimSpace(wrapped) == "" {
		return videoPath, nil
	}

	outputPath := strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + "_titled.mp4"
	filter := fmt.Sprintf(
		"drawbox=x=0:y=120:w=iw:h=320:color=black@0.55:t=fill,"+
			"drawtext=text='%s':fontcolor=white:fontsize=64:borderw=2:bordercolor=black:x=(w-text_w)/2:y=180:line_spacing=18",
		escapeForDrawText(wrapped))

	result, err := a.runner.Run(ctx, a.ffmpegPath,
		"-y",
		"-i", videoPath,
		"-vf", filter,
		"-c:a", "copy",
		outputPath,
	)
	if err != nil {
		return "", fmt.Errorf("title overlay: ffmpeg: %w (%s)", err, tailOf(result.Stderr))
	}
	return outputPath, nil
}

// AddImageTitle burns the title banner onto a still image, for photo
// posts. Returns the path of the new file.
func (a *Assembler) AddImageTitle(ctx context.Context, imagePath, title string) (string, error) {
	wrapped := wrapText(title, titleWrapWidth, titleMaxLines)
	if strings.TrimSpace(wrapped) == "" {
		return imagePath, nil
	}

	ext := filepath.Ext(imagePath)
	outputPath := strings.TrimSuffix(imagePath, ext) + "_titled" + ext
	filter := fmt.Sprintf(
		"drawbox=x=0:y=120:w=iw:h=320:color=black@0.55:t=fill,"+
			"drawtext=text='%s':fontcolor=white:fontsize=64:borderw=2:bordercolor=black:x=(w-text_w)/2:y=180:line_spacing=18",
		escapeForDrawText(wrapped))

	result, err := a.runner.Run(ctx, a.ffmpegPath,
		"-y",
		"-i", imagePath,
		"-vf", filter,
		outputPath,
	)
	if err != nil {
		return "", fmt.Errorf("image title: ffmpeg: %w (%s)", err, tailOf(result.Stderr))
	}
	return outputPath, nil
}

// wrapText wraps text at word boundaries to at most width characters
// per line and maxLines lines, truncating with an ellipsis beyond that.
func wrapText(text string, width, maxLines int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	lines := make([]string, 0, maxLines)
	current := ""
	truncated := false

	for _, word := range words {
		next := word
		if current != "" {
			next = current + " " + word
		}
		if len(next) <= width {
			current = next
			continue
		}
		if len(lines) == maxLines-1 {
			if current == "" {
				current = word
			}
			truncated = true
			break
		}
		lines = append(lines, current)
		current = word
	}
	if current != "" {
		lines = append(lines, current)
	}
	if truncated {
		last := lines[len(lines)-1]
		if len(last) > width-3 {
			last = last[:width-3]
		}
		lines[len(lines)-1] = last + "..."
	}
	return strings.Join(lines, "\n")
}

// escapeForDrawText escapes text for an ffmpeg drawtext filter value.
func escapeForDrawText(text string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		`:`, `\:`,
		`%`, `\%`,
		`,`, `\,`,
		`[`, `\[`,
		`]`, `\]`,
	)
	return replacer.Replace(text)
}

// formatSeconds renders a duration for ffmpeg arguments.
func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}

// tailOf keeps the last part of ffmpeg stderr for error messages.
func tailOf(stderr string) string {
	stderr = strings.TrimSpace(stderr)
	const max = 400
	if len(stderr) <= max {
		return stderr
	}
	return "..." + stderr[len(stderr)-max:]
}
