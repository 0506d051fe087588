package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"node.town/listen/config"
	"node.town/listen/speechtotext"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize",
	Short: "Recognize a complete audio file",
	Run:   runRecognize,
}

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Upload audio in chunks to a session",
	Run:   runLive,
}

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Stream audio over a websocket and print results as they arrive",
	Run:   runStream,
}

func init() {
	for _, cmd := range []*cobra.Command{recognizeCmd, liveCmd, streamCmd} {
		addRecognitionFlags(cmd)
	}
	for _, cmd := range []*cobra.Command{recognizeCmd, liveCmd} {
		cmd.Flags().String("session-id", "", "Bind the request to a session")
		cmd.Flags().String("cookie", "", "Session cookie from `session create`")
	}
	liveCmd.Flags().Int("chunk-size", 8192, "Bytes per uploaded chunk")
}

func addRecognitionFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("audio", "", "Audio file, or - for stdin")
	f.String("content-type", "", "Audio MIME type, e.g. audio/flac or audio/l16;rate=16000")
	f.Bool("continuous", false, "Keep recognizing across pauses")
	f.Bool("timestamps", false, "Return word timestamps")
	f.Bool("word-confidence", false, "Return word confidences")
	f.Bool("profanity-filter", true, "Censor profanity")
	f.Bool("smart-formatting", false, "Format dates, numbers and the like")
	f.Bool("interim-results", false, "Return interim results")
	f.Int("inactivity-timeout", 30, "Seconds of silence before the service gives up, -1 for never")
	f.Int("max-alternatives", 1, "Alternatives per result")
	f.StringSlice("keywords", nil, "Keywords to spot (comma-separated)")
	f.Float64("keywords-threshold", 0.5, "Keyword spotting threshold")
	f.Float64("word-alternatives-threshold", 0, "Word alternatives threshold")
	cmd.MarkFlagRequired("audio")
	cmd.MarkFlagRequired("content-type")
}

// recognitionOptions builds options from flags. Unchanged numeric flags are
// left unset so the service defaults apply.
func recognitionOptions(cmd *cobra.Command, cfg *config.Config) speechtotext.RecognitionOptions {
	f := cmd.Flags()
	opts := speechtotext.RecognitionOptions{Model: cfg.Model}

	opts.ContentType, _ = f.GetString("content-type")
	opts.Continuous, _ = f.GetBool("continuous")
	opts.Timestamps, _ = f.GetBool("timestamps")
	opts.WordConfidence, _ = f.GetBool("word-confidence")
	opts.SmartFormatting, _ = f.GetBool("smart-formatting")
	opts.InterimResults, _ = f.GetBool("interim-results")
	opts.Keywords, _ = f.GetStringSlice("keywords")

	if f.Changed("profanity-filter") {
		v, _ := f.GetBool("profanity-filter")
		opts.ProfanityFilter = speechtotext.Bool(v)
	}
	if f.Changed("inactivity-timeout") {
		v, _ := f.GetInt("inactivity-timeout")
		opts.InactivityTimeout = speechtotext.Int(v)
	}
	if f.Changed("max-alternatives") {
		v, _ := f.GetInt("max-alternatives")
		opts.MaxAlternatives = speechtotext.Int(v)
	}
	if len(opts.Keywords) > 0 {
		v, _ := f.GetFloat64("keywords-threshold")
		opts.KeywordsThreshold = speechtotext.Float(v)
	}
	if f.Changed("word-alternatives-threshold") {
		v, _ := f.GetFloat64("word-alternatives-threshold")
		opts.WordAlternativesThreshold = speechtotext.Float(v)
	}

	if f.Lookup("session-id") != nil {
		opts.SessionID, _ = f.GetString("session-id")
		opts.CookieSession, _ = f.GetString("cookie")
	}
	return opts
}

func openAudio(cmd *cobra.Command) io.ReadCloser {
	path, _ := cmd.Flags().GetString("audio")
	if path == "-" {
		return io.NopCloser(os.Stdin)
	}
	file, err := os.Open(path)
	if err != nil {
		logger.Fatal("open audio", "error", err)
	}
	return file
}

func runRecognize(cmd *cobra.Command, args []string) {
	cfg, client := loadClient()
	ctx, cancel := signalContext()
	defer cancel()

	audio := openAudio(cmd)
	defer audio.Close()

	result, err := client.Recognize(ctx, &speechtotext.RecognizeParams{
		Audio:              audio,
		RecognitionOptions: recognitionOptions(cmd, cfg),
	})
	if err != nil {
		logger.Fatal("recognize", "error", err)
	}

	var transcript speechtotext.Transcript
	transcript.Add(result)
	speechtotext.PrintTranscript(os.Stdout, &transcript)
}

func runLive(cmd *cobra.Command, args []string) {
	cfg, client := loadClient()
	ctx, cancel := signalContext()
	defer cancel()

	audio := openAudio(cmd)
	defer audio.Close()

	chunkSize, _ := cmd.Flags().GetInt("chunk-size")
	if chunkSize <= 0 {
		logger.Fatal("chunk size must be positive", "chunk-size", chunkSize)
	}

	live, err := client.RecognizeLive(
		ctx,
		&speechtotext.RecognizeParams{RecognitionOptions: recognitionOptions(cmd, cfg)},
		nil,
	)
	if err != nil {
		logger.Fatal("recognize live", "error", err)
	}

	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(live, audio, buf); err != nil {
		logger.Error("upload", "error", err)
	}
	if err := live.Close(); err != nil {
		logger.Error("close upload", "error", err)
	}

	result, err := live.Wait(ctx)
	if err != nil {
		logger.Fatal("recognize live", "error", err)
	}

	var transcript speechtotext.Transcript
	transcript.Add(result)
	speechtotext.PrintTranscript(os.Stdout, &transcript)
}

func runStream(cmd *cobra.Command, args []string) {
	cfg, client := loadClient()
	ctx, cancel := signalContext()
	defer cancel()

	audio := openAudio(cmd)
	defer audio.Close()

	stream := client.NewRecognizeStream(recognitionOptions(cmd, cfg))
	if err := stream.Open(ctx); err != nil {
		logger.Fatal("open stream", "error", err)
	}

	var transcript speechtotext.Transcript
	if err := pumpStream(ctx, stream, audio, func(ev speechtotext.Event) {
		switch ev.Type {
		case speechtotext.EventConnected:
			logger.Debug("connected", "url", ev.Config.URL, "id", ev.Config.ID)
		case speechtotext.EventResults:
			transcript.Add(ev.Result)
			for _, res := range ev.Result.Results {
				if res.Final && len(res.Alternatives) > 0 {
					fmt.Println(res.Alternatives[0].Transcript)
				}
			}
		}
	}); err != nil {
		logger.Fatal("stream", "error", err)
	}

	logger.Info("done", "segments", len(transcript.Segments()))
}

// pumpStream copies audio into stream and hands every event to handle until
// the stream ends. Cancelling ctx aborts the stream.
func pumpStream(
	ctx context.Context,
	stream *speechtotext.RecognizeStream,
	audio io.Reader,
	handle func(speechtotext.Event),
) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if _, err := stream.ReadFrom(audio); err != nil {
			return fmt.Errorf("send audio: %w", err)
		}
		return stream.Close()
	})

	g.Go(func() error {
		var streamErr error
		for ev := range stream.Events() {
			if ev.Type == speechtotext.EventError {
				streamErr = ev.Err
			}
			handle(ev)
		}
		return streamErr
	})

	g.Go(func() error {
		select {
		case <-stream.Done():
		case <-ctx.Done():
			stream.Abort()
		}
		return nil
	})

	err := g.Wait()
	if errors.Is(err, speechtotext.ErrStreamClosed) {
		if serr := stream.Err(); serr != nil {
			return serr
		}
		// aborted
		return nil
	}
	return err
}
