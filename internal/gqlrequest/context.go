package gqlrequest

import "context"

type analysisKey struct{}

// WithAnalysis stores GraphQL request analysis in context.
func WithAnalysis(ctx context.Context, analysis *Analysis) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, analysisKey{}, analysis)
}

// AnalysisFromContext retrieves GraphQL request analysis from context.
func AnalysisFromContext(ctx context.Context) *Analysis {
	if ctx == nil {
		return nil
	}
	analysis, _ := ctx.Value(analysisKey{}).(*Analysis)
	return analysis
}

// Summary is the loggable subset of an Analysis.
type Summary struct {
	OperationName string
	OperationType string
	OperationHash string
	RootFields    []string
	Valid         bool
}

// SummaryFromContext summarizes the analysis stored in ctx, if any.
func SummaryFromContext(ctx context.Context) (Summary, bool) {
	a := AnalysisFromContext(ctx)
	if a == nil {
		return Summary{}, false
	}
	return Summary{
		OperationName: a.OperationName,
		OperationType: a.OperationType,
		OperationHash: a.OperationHash,
		RootFields:    a.RootFields,
		Valid:         a.Err() == nil && a.Operation != nil,
	}, true
}
