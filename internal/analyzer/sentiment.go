package analyzer

import (
	"github.com/jonreiter/govader"
)

// Tone is the sentiment reading of one generated segment.
type Tone struct {
	Label    string
	Compound float64
}

type SentimentAnalyzer struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

func New() *SentimentAnalyzer {
	return &SentimentAnalyzer{
		analyzer: govader.NewSentimentIntensityAnalyzer(),
	}
}

// Score rates a piece of text. Used to annotate generated segments in the logs.
func (sa *SentimentAnalyzer) Score(text string) Tone {
	sentiment := sa.analyzer.PolarityScores(text)
	return Tone{
		Label:    categorize(sentiment.Compound),
		Compound: sentiment.Compound,
	}
}

// ScoreAll rates a whole thread by the mean compound score of its parts.
func (sa *SentimentAnalyzer) ScoreAll(texts []string) Tone {
	if len(texts) == 0 {
		return Tone{Label: "neutral"}
	}
	var sum float64
	for _, text := range texts {
		sum += sa.analyzer.PolarityScores(text).Compound
	}
	mean := sum / float64(len(texts))
	return Tone{Label: categorize(mean), Compound: mean}
}

func categorize(compound float64) string {
	if compound >= 0.3 {
		return "positive"
	} else if compound <= -0.3 {
		return "negative"
	}
	return "neutral"
}
