package extract

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/scholarai/internal/ai"
	"github.com/xxxsen/scholarai/internal/model"
	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
)

var timestampPattern = regexp.MustCompile(`(\d{1,2}:\d{2}(?::\d{2})?)`)

type videoExtractor struct {
	describer ai.IDescriber
}

// NewYouTube summarises a YouTube video by passing its URL to a multimodal
// model as a file reference.
func NewYouTube(describer ai.IDescriber) TextExtractor {
	return &videoExtractor{describer: describer}
}

func (e *videoExtractor) Extract(ctx context.Context, src *Source) ([]model.Page, error) {
	if _, err := YouTubeVideoID(src.URL); err != nil {
		return nil, err
	}
	if e.describer == nil {
		return nil, ai.ErrNotConfigured
	}
	summary, err := e.describer.Describe(ctx, ai.VideoSummaryPrompt, ai.Media{URI: src.URL})
	if err != nil {
		return nil, fmt.Errorf("summarize video: %w", err)
	}
	logutil.GetLogger(ctx).Debug("video summarized",
		zap.String("url", src.URL), zap.Int("summary_len", len(summary)))
	return []model.Page{{Number: 1, Text: summary}}, nil
}

// videoMimes is the upload allow-list, keyed by lower-case extension.
var videoMimes = map[string]string{
	".mp4": "video/mp4",
	".mov": "video/quicktime",
	".avi": "video/x-msvideo",
	".mkv": "video/x-matroska",
}

// VideoExtensions lists the accepted upload extensions in a stable order.
var VideoExtensions = []string{".mp4", ".mov", ".avi", ".mkv"}

// VideoMime returns the mime type for an uploaded video file name.
func VideoMime(fileName string) (string, bool) {
	mime, ok := videoMimes[strings.ToLower(filepath.Ext(fileName))]
	return mime, ok
}

type videoFileExtractor struct {
	describer ai.IDescriber
}

// NewVideoFile summarises an uploaded video and writes a quiz with an answer
// key for it.
func NewVideoFile(describer ai.IDescriber) TextExtractor {
	return &videoFileExtractor{describer: describer}
}

func (e *videoFileExtractor) Extract(ctx context.Context, src *Source) ([]model.Page, error) {
	mime, ok := VideoMime(src.FileName)
	if !ok {
		return nil, fmt.Errorf("unsupported video format %q, allowed: %s: %w",
			filepath.Ext(src.FileName), strings.Join(VideoExtensions, ", "), appErr.ErrInvalid)
	}
	if len(src.Data) == 0 {
		return nil, fmt.Errorf("video file is empty: %w", appErr.ErrInvalid)
	}
	if e.describer == nil {
		return nil, ai.ErrNotConfigured
	}
	text, err := e.describer.Describe(ctx, ai.VideoQuizPrompt, ai.Media{MimeType: mime, Data: src.Data})
	if err != nil {
		return nil, fmt.Errorf("summarize video file: %w", err)
	}
	logutil.GetLogger(ctx).Debug("video file summarized",
		zap.String("file_name", src.FileName), zap.Int("size", len(src.Data)), zap.Int("summary_len", len(text)))
	return []model.Page{{Number: 1, Text: text}}, nil
}

type videoRouter struct {
	youtube TextExtractor
	file    TextExtractor
}

// NewVideo handles both video sources: uploaded bytes go to the file
// extractor, links go to the YouTube one.
func NewVideo(describer ai.IDescriber) TextExtractor {
	return &videoRouter{youtube: NewYouTube(describer), file: NewVideoFile(describer)}
}

func (r *videoRouter) Extract(ctx context.Context, src *Source) ([]model.Page, error) {
	if len(src.Data) > 0 {
		return r.file.Extract(ctx, src)
	}
	return r.youtube.Extract(ctx, src)
}

// YouTubeVideoID accepts youtu.be/<id> and youtube.com/watch?v=<id> links.
func YouTubeVideoID(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid youtube url: %w", appErr.ErrInvalid)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	var id string
	switch {
	case host == "youtu.be":
		id = strings.Trim(u.Path, "/")
	case host == "youtube.com" || strings.HasSuffix(host, ".youtube.com"):
		id = u.Query().Get("v")
	}
	if id == "" || strings.Contains(id, "/") {
		return "", fmt.Errorf("invalid youtube url: %w", appErr.ErrInvalid)
	}
	return id, nil
}

// ParseTimestamps returns every m:ss, mm:ss or h:mm:ss token in text, in order.
func ParseTimestamps(text string) []string {
	return timestampPattern.FindAllString(text, -1)
}

func TimestampSeconds(ts string) (int, error) {
	parts := strings.Split(ts, ":")
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp %q: %w", ts, appErr.ErrInvalid)
		}
		total = total*60 + n
	}
	return total, nil
}

func EmbedURL(videoID string, seconds int) string {
	return fmt.Sprintf("https://www.youtube.com/embed/%s?start=%d&autoplay=1", videoID, seconds)
}

// VideoTimestamps links every timestamp mentioned in summary to the video.
// Unparseable tokens are skipped.
func VideoTimestamps(videoURL, summary string) ([]model.VideoTimestamp, error) {
	id, err := YouTubeVideoID(videoURL)
	if err != nil {
		return nil, err
	}
	out := make([]model.VideoTimestamp, 0)
	for _, ts := range ParseTimestamps(summary) {
		secs, err := TimestampSeconds(ts)
		if err != nil {
			continue
		}
		out = append(out, model.VideoTimestamp{Label: ts, Seconds: secs, URL: EmbedURL(id, secs)})
	}
	return out, nil
}
