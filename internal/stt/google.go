package stt

import (
	"context"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"

	"github.com/loqalabs/ortheloquence/internal/audio"
)

type speechClient interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
	Close() error
}

// GoogleRecognizer uses Google Cloud Speech-to-Text synchronous recognition.
// Without a credentials file, GOOGLE_APPLICATION_CREDENTIALS is used.
type GoogleRecognizer struct {
	client speechClient
}

func NewGoogleRecognizer(ctx context.Context, credentialsFile string) (*GoogleRecognizer, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GoogleRecognizer{client: c}, nil
}

func (g *GoogleRecognizer) Recognize(ctx context.Context, wave audio.Waveform, locale string) (string, error) {
	resp, err := g.client.Recognize(ctx, recognizeRequest(wave, locale))
	if err != nil {
		return "", &ServiceError{Provider: "google", Err: err}
	}

	var parts []string
	for _, r := range resp.GetResults() {
		if len(r.GetAlternatives()) == 0 {
			continue
		}
		if text := strings.TrimSpace(r.GetAlternatives()[0].GetTranscript()); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", ErrUnintelligible
	}
	return strings.Join(parts, " "), nil
}

// Close releases the underlying gRPC connection.
func (g *GoogleRecognizer) Close() error {
	return g.client.Close()
}

func recognizeRequest(wave audio.Waveform, locale string) *speechpb.RecognizeRequest {
	channels := wave.Channels
	if channels <= 0 {
		channels = 1
	}
	return &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:          speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:   int32(wave.SampleRate),
			AudioChannelCount: int32(channels),
			LanguageCode:      locale,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: wave.PCM},
		},
	}
}
