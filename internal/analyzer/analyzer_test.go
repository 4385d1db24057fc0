package analyzer

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"github.com/keagan/shortforge/internal/ffmpeg"
	"github.com/keagan/shortforge/internal/media"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func grayFrame(t float64, width, height int, fill byte) ffmpeg.GrayFrame {
	pix := make([]byte, width*height)
	for i := range pix {
		pix[i] = fill
	}
	return ffmpeg.GrayFrame{T: t, Width: width, Height: height, Pix: pix}
}

func TestAudioAnalyzerUnavailableWithoutPCM(t *testing.T) {
	a := NewAudioAnalyzer(testLogger())
	_, err := a.Analyze(context.Background(), &media.Samples{SampleRate: 22050})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestAudioAnalyzerLoudBeatsQuiet(t *testing.T) {
	const rate = 1000
	pcm := make([]float64, rate*4)
	// two quiet seconds, then two loud seconds
	for i := 0; i < rate*2; i++ {
		pcm[i] = 0.01 * math.Sin(float64(i)/10)
	}
	for i := rate * 2; i < rate*4; i++ {
		pcm[i] = 0.8 * math.Sin(float64(i)/10)
	}

	a := NewAudioAnalyzer(testLogger())
	series, err := a.Analyze(context.Background(), &media.Samples{PCM: pcm, SampleRate: rate})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(series) != 4 {
		t.Fatalf("len(series) = %d, want 4", len(series))
	}
	if series[2].Score <= series[0].Score {
		t.Errorf("loud window scored %.1f, quiet scored %.1f; want loud higher", series[2].Score, series[0].Score)
	}
	if series[0].Score > 10 || series[1].Score > 10 {
		t.Errorf("quiet windows scored %.1f / %.1f, want near zero", series[0].Score, series[1].Score)
	}
	for _, s := range series {
		if s.Score < 0 || s.Score > 100 {
			t.Errorf("score %.1f out of range at t=%.0f", s.Score, s.T)
		}
	}
}

func TestMotionAnalyzerStaticIsZero(t *testing.T) {
	samples := &media.Samples{Gray: []ffmpeg.GrayFrame{
		grayFrame(0, 32, 32, 100),
		grayFrame(0.5, 32, 32, 100),
	}}

	a := NewMotionAnalyzer(testLogger())
	series, err := a.Analyze(context.Background(), samples)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(series) != 1 {
		t.Fatalf("len(series) = %d, want 1", len(series))
	}
	if series[0].Score != 0 {
		t.Errorf("static frames scored %.1f, want 0", series[0].Score)
	}
}

func TestMotionAnalyzerDetectsShift(t *testing.T) {
	const w, h = 32, 32
	prev := grayFrame(0, w, h, 0)
	cur := grayFrame(0.5, w, h, 0)
	// a bright vertical bar, shifted 3px right in the second frame
	for y := 0; y < h; y++ {
		for x := 8; x < 12; x++ {
			prev.Pix[y*w+x] = 255
			cur.Pix[y*w+x+3] = 255
		}
	}

	a := NewMotionAnalyzer(testLogger())
	series, err := a.Analyze(context.Background(), &media.Samples{Gray: []ffmpeg.GrayFrame{prev, cur}})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if series[0].Score <= 0 {
		t.Errorf("shifted bar scored %.1f, want > 0", series[0].Score)
	}
}

func TestSceneAnalyzerScoresCut(t *testing.T) {
	samples := &media.Samples{Gray: []ffmpeg.GrayFrame{
		grayFrame(0, 16, 16, 0),
		grayFrame(0.5, 16, 16, 0),
		grayFrame(1.0, 16, 16, 255),
	}}

	a := NewSceneAnalyzer(testLogger())
	series, err := a.Analyze(context.Background(), samples)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("len(series) = %d, want 2", len(series))
	}
	if series[0].Score != 0 {
		t.Errorf("identical frames scored %.1f, want 0", series[0].Score)
	}
	if series[1].Score != 100 {
		t.Errorf("black-to-white cut scored %.1f, want 100", series[1].Score)
	}
}

func TestFaceAnalyzerScoresSkinRegion(t *testing.T) {
	const w, h = 40, 40
	pix := make([]byte, w*h*3)
	// gray background
	for i := range pix {
		pix[i] = 60
	}
	// a 12x12 skin-toned block
	for y := 10; y < 22; y++ {
		for x := 10; x < 22; x++ {
			i := (y*w + x) * 3
			pix[i], pix[i+1], pix[i+2] = 220, 170, 140
		}
	}

	a := NewFaceAnalyzer(testLogger())
	series, err := a.Analyze(context.Background(), &media.Samples{RGB: []ffmpeg.RGBFrame{
		{T: 0, Width: w, Height: h, Pix: pix},
	}})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if series[0].Score <= 0 {
		t.Errorf("skin block scored %.1f, want > 0", series[0].Score)
	}

	count, ratio := detectSkinRegions(pix, w, h)
	if count != 1 {
		t.Errorf("region count = %d, want 1", count)
	}
	wantRatio := 144.0 / float64(w*h)
	if math.Abs(ratio-wantRatio) > 1e-9 {
		t.Errorf("area ratio = %f, want %f", ratio, wantRatio)
	}
}

func TestFaceAnalyzerEmptyFrameScoresZero(t *testing.T) {
	const w, h = 20, 20
	pix := make([]byte, w*h*3) // all black

	a := NewFaceAnalyzer(testLogger())
	series, err := a.Analyze(context.Background(), &media.Samples{RGB: []ffmpeg.RGBFrame{
		{T: 0, Width: w, Height: h, Pix: pix},
	}})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if series[0].Score != 0 {
		t.Errorf("black frame scored %.1f, want 0", series[0].Score)
	}
}

func TestParseInsight(t *testing.T) {
	fenced := "```json\n{\"score\": 85, \"description\": \"a streamer reacting\", \"content_type\": \"reaction\", \"mood\": \"excited\", \"viral_potential\": \"high\", \"has_person\": true, \"has_text\": false}\n```"
	insight, ok := parseInsight(fenced)
	if !ok {
		t.Fatal("fenced JSON should parse")
	}
	if insight.Score != 85 || insight.ContentType != "reaction" || insight.ViralPotential != "high" || !insight.HasPerson {
		t.Errorf("unexpected insight: %+v", insight)
	}

	noScore, ok := parseInsight(`{"description": "a talking head", "viral_potential": "low"}`)
	if !ok {
		t.Fatal("JSON without a score should still parse")
	}
	if noScore.Score != defaultSemanticScore {
		t.Errorf("missing score = %d, want neutral %d", noScore.Score, defaultSemanticScore)
	}

	if _, ok := parseInsight("no json here"); ok {
		t.Error("prose without JSON should not parse")
	}
	if _, ok := parseInsight("{not valid json}"); ok {
		t.Error("malformed JSON should not parse")
	}
}

func TestScoreInsight(t *testing.T) {
	cases := []struct {
		insight Insight
		want    float64
	}{
		{Insight{Score: 50, ViralPotential: "high", ContentType: "reaction"}, 77},
		{Insight{Score: 80, ViralPotential: "medium", ContentType: "tutorial"}, 93},
		{Insight{Score: 30, ViralPotential: "low", ContentType: "other"}, 30},
		{Insight{Score: 50, ViralPotential: "HIGH", ContentType: "Action"}, 75},
		{Insight{Score: -10, ViralPotential: "high"}, 15},
		{Insight{Score: 400, ViralPotential: "high"}, 115},
	}

	for _, c := range cases {
		if got := scoreInsight(&c.insight); got != c.want {
			t.Errorf("scoreInsight(%+v) = %.0f, want %.0f", c.insight, got, c.want)
		}
	}
}

func TestAnalyzeRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	samples := &media.Samples{Gray: []ffmpeg.GrayFrame{
		grayFrame(0, 16, 16, 0),
		grayFrame(0.5, 16, 16, 255),
	}}

	if _, err := NewSceneAnalyzer(testLogger()).Analyze(ctx, samples); !errors.Is(err, context.Canceled) {
		t.Errorf("scene err = %v, want context.Canceled", err)
	}
	if _, err := NewMotionAnalyzer(testLogger()).Analyze(ctx, samples); !errors.Is(err, context.Canceled) {
		t.Errorf("motion err = %v, want context.Canceled", err)
	}
}
