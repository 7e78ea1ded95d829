package analysis_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rulelens/pkg/analysis"
	"rulelens/pkg/cascade"
	"rulelens/pkg/catalog"
	"rulelens/pkg/dataset"
	"rulelens/pkg/detect"
	"rulelens/pkg/facts"
)

const employeeCSV = `Employee_ID,Salary,Attendance_Percentage,Leave_Type,Leave_Days,Rating
E001,95000,96,Casual,1,4.7
E002,50000,80,Sick,5,3.2
E003,30000,55,Casual,4,2.0
E004,,70,LOP,3,4.6
`

func employeeRunner(t *testing.T, opts ...analysis.RunnerOpt) *analysis.Runner {
	t.Helper()

	r, err := analysis.NewRunner(catalog.Default(), opts...)
	require.NoError(t, err)

	return r
}

func employeeData(t *testing.T) *dataset.Dataset {
	t.Helper()

	ds, err := dataset.FromCSV(strings.NewReader(employeeCSV))
	require.NoError(t, err)

	return ds
}

func TestAnalyze(t *testing.T) {
	t.Parallel()

	rep := employeeRunner(t).Analyze(t.Context(), employeeData(t), nil)

	assert.Equal(t, "Employee Analysis", rep.Purpose.Purpose)
	assert.Equal(t, detect.TierHigh, rep.Purpose.Confidence)
	assert.Equal(t, detect.TierHigh, rep.OverallConfidence)

	require.Len(t, rep.Records, 4)

	for i, rec := range rep.Records {
		assert.Equal(t, i, rec.Index)
		assert.Len(t, rec.Decisions, 5)
	}

	first := rep.Records[0].Decisions
	assert.Equal(t, "High", decisionValue(t, first, "Salary Level"))
	assert.Equal(t, "Excellent", decisionValue(t, first, "Attendance Status"))
	assert.Equal(t, "Approved", decisionValue(t, first, "Leave Status"))
	assert.Equal(t, "20%", decisionValue(t, first, "Increment"))

	third := rep.Records[2].Decisions
	assert.Equal(t, "Low", decisionValue(t, third, "Salary Level"))
	assert.Equal(t, "Rejected", decisionValue(t, third, "Leave Status"))

	fourth := rep.Records[3].Decisions
	assert.Equal(t, "N/A", decisionValue(t, fourth, "Salary Level"))
	assert.Equal(t, "20%", decisionValue(t, fourth, "Increment"))
}

func decisionValue(t *testing.T, decisions []cascade.Decision, rule string) string {
	t.Helper()

	for _, d := range decisions {
		if d.Rule == rule {
			return d.Decision
		}
	}

	t.Fatalf("no decision for rule %q", rule)

	return ""
}

func TestAnalyzeMinimalDataset(t *testing.T) {
	t.Parallel()

	ds, err := dataset.FromCSV(strings.NewReader("Employee_ID,Salary\nE001,50000\n"))
	require.NoError(t, err)

	rep := employeeRunner(t).Analyze(t.Context(), ds, nil)

	assert.Equal(t, "Employee Analysis", rep.Purpose.Purpose)

	require.Len(t, rep.Records, 1)
	decisions := rep.Records[0].Decisions

	// Only the salary cascade has its input; the rest go N/A.
	assert.Equal(t, "Medium", decisionValue(t, decisions, "Salary Level"))
	assert.Equal(t, "N/A", decisionValue(t, decisions, "Attendance Status"))
	assert.Equal(t, "N/A", decisionValue(t, decisions, "Increment"))

	assert.Contains(t, rep.Mapping.Unmapped, "rating")
}

func TestAnalyzeUnknownDataset(t *testing.T) {
	t.Parallel()

	ds := dataset.New([]string{"Planet", "Moons"}, [][]string{{"Mars", "2"}})

	rep := employeeRunner(t).Analyze(t.Context(), ds, nil)

	assert.Equal(t, detect.PurposeUnknown, rep.Purpose.Purpose)
	assert.Equal(t, detect.TierNone, rep.Purpose.Confidence)
	assert.Empty(t, rep.Records)
	assert.Empty(t, rep.Rules)
	assert.Equal(t, 1, rep.Profile.Rows)
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	t.Parallel()

	r := employeeRunner(t)
	ds := employeeData(t)

	first := r.Analyze(t.Context(), ds, nil)

	for range 5 {
		assert.Equal(t, first, r.Analyze(t.Context(), ds, nil))
	}
}

func TestAnalyzeParallelMatchesSequential(t *testing.T) {
	t.Parallel()

	ds := employeeData(t)

	sequential := employeeRunner(t, analysis.WithWorkers(1)).Analyze(t.Context(), ds, nil)
	parallel := employeeRunner(t, analysis.WithWorkers(3)).Analyze(t.Context(), ds, nil)

	assert.Equal(t, sequential, parallel)
}

func TestAnalyzeMergesFacts(t *testing.T) {
	t.Parallel()

	mlFacts := &facts.Facts{Patterns: []string{"p1"}}

	rep := employeeRunner(t).Analyze(t.Context(), employeeData(t), mlFacts)

	assert.Equal(t, mlFacts, rep.Facts)
}

func TestNewRunnerRejectsBadCatalog(t *testing.T) {
	t.Parallel()

	c := catalog.New()
	c.Purposes = []*catalog.Purpose{{
		Name:     "Test",
		Keywords: []string{"x"},
		Fields:   []*catalog.FieldSpec{{Name: "salary", Kind: catalog.FieldNumeric}},
		Rules: []*catalog.Rule{{
			Name:   "Broken",
			Output: "broken",
			Fields: []string{"salary"},
			Branches: []*catalog.Branch{
				{When: "salary >>> 1.0", Decision: "X", Explain: "x"},
				{Decision: "Y", Explain: "y"},
			},
		}},
	}}
	_, err := analysis.NewRunner(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Test")
}

// NewRunner must validate catalogs itself, so hand-built catalogs that never
// went through a Loader still fail fast or evaluate their rules.
func TestNewRunnerValidatesCatalog(t *testing.T) {
	t.Parallel()

	t.Run("missing default branch", func(t *testing.T) {
		t.Parallel()

		c := catalog.New()
		c.Purposes = []*catalog.Purpose{{
			Name:     "Test",
			Keywords: []string{"salary"},
			Fields:   []*catalog.FieldSpec{{Name: "salary", Kind: catalog.FieldNumeric}},
			Rules: []*catalog.Rule{{
				Name:   "Salary Level",
				Output: "salary_level",
				Fields: []string{"salary"},
				Branches: []*catalog.Branch{
					{When: "salary >= 40000.0", Decision: "High", Explain: "x"},
				},
			}},
		}}

		_, err := analysis.NewRunner(c)
		require.ErrorIs(t, err, catalog.ErrNoDefaultBranch)
	})

	t.Run("valid catalog produces decisions", func(t *testing.T) {
		t.Parallel()

		c := catalog.New()
		c.Purposes = []*catalog.Purpose{{
			Name:     "Test",
			Keywords: []string{"salary"},
			Fields:   []*catalog.FieldSpec{{Name: "salary", Kind: catalog.FieldNumeric, Required: true}},
			Rules: []*catalog.Rule{{
				Name:   "Salary Level",
				Output: "salary_level",
				Fields: []string{"salary"},
				Branches: []*catalog.Branch{
					{When: "salary >= 40000.0", Decision: "High", Explain: "x"},
					{Decision: "Low", Explain: "y"},
				},
			}},
		}}

		r, err := analysis.NewRunner(c)
		require.NoError(t, err)

		ds := dataset.New([]string{"Salary"}, [][]string{{"50000"}})
		rep := r.Analyze(t.Context(), ds, nil)

		require.Len(t, rep.Records, 1)
		assert.Equal(t, "High", decisionValue(t, rep.Records[0].Decisions, "Salary Level"))
	})
}
