package dto

// StatsResponse summarises a student's submissions.
type StatsResponse struct {
	TotalSubmissions   int64   `json:"total_submissions"`
	AverageScore       float64 `json:"average_score"`
	MonthlySubmissions int64   `json:"monthly_submissions"`
}

// ScoreTrendPoint is one graded submission on the trend line.
type ScoreTrendPoint struct {
	Date  string  `json:"date"`
	Score float64 `json:"score"`
}

// TypeShare counts submissions of one document type.
type TypeShare struct {
	DocType string `json:"doc_type"`
	Count   int64  `json:"count"`
}

// AnalysisResponse backs the progress charts.
type AnalysisResponse struct {
	ScoreTrend       []ScoreTrendPoint `json:"score_trend"`
	TypeDistribution []TypeShare       `json:"type_distribution"`
}

// ChatRequest is a free-form question for the assistant.
type ChatRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

// ChatResponse carries the assistant reply.
type ChatResponse struct {
	Reply string `json:"reply"`
}
