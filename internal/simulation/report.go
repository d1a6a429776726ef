package simulation

import (
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/evolution"
)

// Report is the decoded form of a status reply.
type Report struct {
	Phase           string
	Done            bool
	Generation      int
	GenerationCount int
	Member          int
	MemberCount     int
	MemberRuns      int
	Genome          string
	Coefficients    map[string]float64
	Fitness         string // empty until the current member is scored
	AverageFitness  float64
	BestFitness     string
}

// EncodeStatus flattens st into a protobuf Struct. Fitness values are sent as
// strings since the maximal sentinel has no JSON number form.
func EncodeStatus(st evolution.Status) (*structpb.Struct, error) {
	coefficients := make(map[string]any, len(st.Coefficients))
	for name, v := range st.Coefficients {
		coefficients[name] = v
	}
	fields := map[string]any{
		"phase":           st.Phase.String(),
		"done":            st.Phase == evolution.PhaseDone,
		"generation":      st.Generation,
		"generationCount": st.GenerationCount,
		"member":          st.Member,
		"memberCount":     st.MemberCount,
		"memberRuns":      st.MemberRuns,
		"genome":          st.Genome,
		"coefficients":    coefficients,
		"averageFitness":  st.AverageFitness,
		"fitness":         "",
		"bestFitness":     "",
	}
	if st.HasFitness {
		fields["fitness"] = st.Fitness.String()
	}
	if st.HasBest {
		fields["bestFitness"] = st.BestFitness.String()
	}
	return structpb.NewStruct(fields)
}

// DecodeStatus reads a Struct built by EncodeStatus.
func DecodeStatus(s *structpb.Struct) Report {
	f := s.GetFields()
	number := func(key string) int { return int(f[key].GetNumberValue()) }
	r := Report{
		Phase:           f["phase"].GetStringValue(),
		Done:            f["done"].GetBoolValue(),
		Generation:      number("generation"),
		GenerationCount: number("generationCount"),
		Member:          number("member"),
		MemberCount:     number("memberCount"),
		MemberRuns:      number("memberRuns"),
		Genome:          f["genome"].GetStringValue(),
		Fitness:         f["fitness"].GetStringValue(),
		AverageFitness:  f["averageFitness"].GetNumberValue(),
		BestFitness:     f["bestFitness"].GetStringValue(),
		Coefficients:    map[string]float64{},
	}
	for name, v := range f["coefficients"].GetStructValue().GetFields() {
		r.Coefficients[name] = v.GetNumberValue()
	}
	return r
}
