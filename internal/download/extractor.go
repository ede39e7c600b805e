package download

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lrstanley/go-ytdlp"
)

// YTDLPExtractor runs the yt-dlp executable through go-ytdlp
type YTDLPExtractor struct {
	executable string
	logger     *slog.Logger
}

// NewYTDLPExtractor creates an extractor. An empty executable uses the
// binary found on PATH or installed by InstallYTDLP.
func NewYTDLPExtractor(executable string, logger *slog.Logger) *YTDLPExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &YTDLPExtractor{executable: executable, logger: logger}
}

// InstallYTDLP downloads yt-dlp into the go-ytdlp cache when it is missing
// and returns the resolved executable path
func InstallYTDLP(ctx context.Context) (string, error) {
	resolved, err := ytdlp.Install(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("install yt-dlp: %w", err)
	}
	return resolved.Executable, nil
}

// Extract runs yt-dlp for req and parses the printed info dict
func (e *YTDLPExtractor) Extract(ctx context.Context, req ExtractRequest) (*MediaInfo, error) {
	cmd := e.command(req)

	result, err := cmd.Run(ctx, req.URL)
	if err != nil {
		// With --ignore-errors yt-dlp exits non-zero after soft failures such
		// as a skipped sub-stream but still prints the info dict.
		if ctx.Err() == nil && result != nil {
			if info, perr := ParseMediaInfo([]byte(result.Stdout)); perr == nil {
				e.logger.Warn("yt-dlp reported errors", "url", req.URL, "error", err, "stderr", result.Stderr)
				return info, nil
			}
		}
		if result != nil && result.Stderr != "" {
			e.logger.Debug("yt-dlp stderr", "url", req.URL, "stderr", result.Stderr)
		}
		return nil, fmt.Errorf("run yt-dlp: %w", err)
	}
	return ParseMediaInfo([]byte(result.Stdout))
}

func (e *YTDLPExtractor) command(req ExtractRequest) *ytdlp.Command {
	cmd := ytdlp.New().
		IgnoreErrors().
		NoCheckCertificates().
		NoWarnings().
		NoPlaylist().
		NoProgress().
		DumpSingleJSON()

	if e.executable != "" {
		cmd = cmd.SetExecutable(e.executable)
	}
	if req.Flat {
		cmd = cmd.FlatPlaylist()
	}

	if req.MetadataOnly() {
		return cmd.SkipDownload()
	}

	// --dump-single-json implies simulation unless told otherwise
	cmd = cmd.NoSimulate().Output(req.OutputTemplate)

	p := req.Profile
	if p.Format != "" {
		cmd = cmd.Format(p.Format)
	}
	if p.MergeFormat != "" {
		cmd = cmd.MergeOutputFormat(p.MergeFormat)
	}
	if p.ExtractAudio {
		cmd = cmd.ExtractAudio().AudioFormat(p.AudioFormat).AudioQuality(p.AudioQuality)
	}
	return cmd
}
