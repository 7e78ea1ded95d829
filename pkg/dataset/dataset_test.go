package dataset_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rulelens/pkg/dataset"
)

func TestInfer(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		raw  string
		kind dataset.Kind
	}{
		"integer":             {raw: "50000", kind: dataset.KindNumber},
		"float":               {raw: "4.5", kind: dataset.KindNumber},
		"negative":            {raw: "-5000", kind: dataset.KindNumber},
		"thousands separator": {raw: "1,200,000", kind: dataset.KindNumber},
		"text":                {raw: "Casual", kind: dataset.KindText},
		"iso date":            {raw: "2024-03-15", kind: dataset.KindDate},
		"slash date":          {raw: "15/03/2024", kind: dataset.KindDate},
		"clock time":          {raw: "09:45", kind: dataset.KindTime},
		"empty":               {raw: "", kind: dataset.KindNull},
		"whitespace":          {raw: "   ", kind: dataset.KindNull},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.kind, dataset.Infer(tc.raw).Kind())
		})
	}
}

func TestValueCoercions(t *testing.T) {
	t.Parallel()

	n, ok := dataset.Text("50,000").AsNumber()
	require.True(t, ok)
	assert.InDelta(t, 50000.0, n, 0)

	_, ok = dataset.Text("Casual").AsNumber()
	assert.False(t, ok)

	s, ok := dataset.Number(42).AsText()
	require.True(t, ok)
	assert.Equal(t, "42", s)

	_, ok = dataset.Null().AsText()
	assert.False(t, ok)

	_, ok = dataset.Null().AsNumber()
	assert.False(t, ok)
}

func TestValueDisplay(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "50,000", dataset.Number(50000).Display())
	assert.Equal(t, "4.5", dataset.Number(4.5).Display())
	assert.Equal(t, "Casual", dataset.Text("Casual").Display())
	assert.Equal(t, "null", dataset.Null().Display())
}

func TestDateAndTimeRenderAsParsed(t *testing.T) {
	t.Parallel()

	tcs := map[string]string{
		"2024-03-15": "2024-03-15",
		"15/03/2024": "15/03/2024",
		"09:45":      "09:45",
		"09:45:30":   "09:45:30",
	}

	for raw, want := range tcs {
		v := dataset.Infer(raw)

		assert.Equal(t, want, v.Display(), raw)

		s, ok := v.AsText()
		require.True(t, ok, raw)
		assert.Equal(t, want, s, raw)
	}
}

func TestNewPadsShortRows(t *testing.T) {
	t.Parallel()

	d := dataset.New(
		[]string{"a", "b", "c"},
		[][]string{{"1", "2"}},
	)

	require.Len(t, d.Records, 1)
	assert.Equal(t, dataset.KindNumber, d.Records[0].Value("b").Kind())
	assert.True(t, d.Records[0].Value("c").IsNull())
	assert.True(t, d.Records[0].Value("nonexistent").IsNull())
}

func TestFromCSV(t *testing.T) {
	t.Parallel()

	csvData := strings.Join([]string{
		"Employee_ID,Salary,Leave_Type",
		"E001,85000,Casual",
		"E002, 39000,Sick",
		"E003,,LOP",
	}, "\n")

	d, err := dataset.FromCSV(strings.NewReader(csvData))
	require.NoError(t, err)

	assert.Equal(t, []string{"Employee_ID", "Salary", "Leave_Type"}, d.Columns)
	require.Len(t, d.Records, 3)

	n, ok := d.Records[0].Value("Salary").AsNumber()
	require.True(t, ok)
	assert.InDelta(t, 85000.0, n, 0)

	// Leading whitespace is trimmed before inference.
	n, ok = d.Records[1].Value("Salary").AsNumber()
	require.True(t, ok)
	assert.InDelta(t, 39000.0, n, 0)

	assert.True(t, d.Records[2].Value("Salary").IsNull())
}

func TestFromCSVEmpty(t *testing.T) {
	t.Parallel()

	_, err := dataset.FromCSV(strings.NewReader(""))
	require.ErrorIs(t, err, dataset.ErrNoHeader)
}

func TestFromCSVFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,x\n"), 0o600))

	d, err := dataset.FromCSVFile(path)
	require.NoError(t, err)
	assert.Len(t, d.Records, 1)

	_, err = dataset.FromCSVFile(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}

func TestProfile(t *testing.T) {
	t.Parallel()

	d := dataset.New(
		[]string{"salary", "leave_type"},
		[][]string{
			{"50000", "Casual"},
			{"85000", "Sick"},
			{"", "Casual"},
		},
	)

	p := d.Profile()
	assert.Equal(t, 3, p.Rows)
	require.Len(t, p.Columns, 2)

	salary := p.Columns[0]
	assert.Equal(t, "salary", salary.Name)
	assert.Equal(t, "number", salary.Kind)
	assert.Equal(t, 1, salary.Nulls)
	assert.Equal(t, 2, salary.Distinct)

	leave := p.Columns[1]
	assert.Equal(t, "text", leave.Kind)
	assert.Equal(t, 0, leave.Nulls)
	assert.Equal(t, 2, leave.Distinct)
}
