package features

import (
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kpritch24/nypd-shooting-incident/internal/config"
	"github.com/kpritch24/nypd-shooting-incident/internal/errs"
	"github.com/kpritch24/nypd-shooting-incident/internal/frame"
)

func testConfig() *config.Config {
	return &config.Config{
		Columns: []config.ColumnSpec{
			{Name: "BORO", Role: config.RoleNominal},
			{Name: "VIC_AGE_GROUP", Role: config.RoleOrdinal, Levels: []string{"<18", "18-24", "25-44", "45-64", "65+"}},
			{Name: "Latitude", Role: config.RoleNumeric},
			{Name: "STATISTICAL_MURDER_FLAG", Role: config.RoleBoolean},
		},
		Target:          "STATISTICAL_MURDER_FLAG",
		PositiveLabel:   "Yes",
		NegativeLabel:   "No",
		Features:        []string{"BORO", "VIC_AGE_GROUP", "Latitude", "OCCUR_HOUR"},
		UnknownCategory: "UNKNOWN",
	}
}

func testFrame(t *testing.T, mem memory.Allocator) *frame.Frame {
	t.Helper()
	boro := frame.NewString("BORO", []string{"BRONX", "QUEENS", "BRONX", "BROOKLYN"}, nil, mem)
	age := frame.NewString("VIC_AGE_GROUP", []string{"25-44", "<18", "18-24", "25-44"}, nil, mem)
	lat := frame.NewFloat64("Latitude", []float64{40.1, 40.2, 40.3, 40.4}, nil, mem)
	hour := frame.NewInt64("OCCUR_HOUR", []int64{23, 2, 23, 14}, nil, mem)
	flag := frame.NewBool("STATISTICAL_MURDER_FLAG", []bool{true, false, false, true}, nil, mem)
	f, err := frame.New(boro, age, lat, hour, flag)
	require.NoError(t, err)
	return f
}

func TestNewCategoricalSortedVocabulary(t *testing.T) {
	c := NewCategorical("BORO", []string{"QUEENS", "BRONX", "QUEENS", "BROOKLYN"}, false, nil)

	assert.Equal(t, []string{"BRONX", "BROOKLYN", "QUEENS"}, c.Levels())
	assert.Equal(t, 2, c.Code(0))
	assert.Equal(t, 0, c.Code(1))
	assert.Equal(t, "QUEENS", c.Value(2))
	assert.Equal(t, []int{1, 1, 2}, c.Counts())
}

func TestNewCategoricalDeclaredLevels(t *testing.T) {
	levels := []string{"<18", "18-24", "25-44", "45-64", "65+"}
	c := NewCategorical("VIC_AGE_GROUP", []string{"25-44", "<18", "65+"}, true, levels)

	assert.Equal(t, levels, c.Levels())
	assert.True(t, c.Ordered())
	assert.Equal(t, 2, c.Code(0))
	assert.Equal(t, 0, c.Code(1))
	assert.Equal(t, 4, c.Code(2))
}

func TestNewCategoricalSurplusLevelsAppended(t *testing.T) {
	c := NewCategorical("X", []string{"b", "z", "a"}, true, []string{"a", "b"})

	assert.Equal(t, []string{"a", "b", "z"}, c.Levels())
}

func TestRestrictToMarksUnseenUndefined(t *testing.T) {
	train := NewCategorical("BORO", []string{"BRONX", "QUEENS"}, false, nil)
	test := NewCategorical("BORO", []string{"QUEENS", "STATEN ISLAND", "BRONX"}, false, nil)

	restricted := test.RestrictTo(train)

	assert.Equal(t, train.Levels(), restricted.Levels())
	assert.Equal(t, 1, restricted.Code(0))
	assert.Equal(t, UndefinedCode, restricted.Code(1))
	assert.Equal(t, 0, restricted.Code(2))
}

func TestDominantShare(t *testing.T) {
	c := NewCategorical("X", []string{"a", "a", "a", "b"}, false, nil)

	share, distinct := c.DominantShare()
	assert.InDelta(t, 0.75, share, 1e-12)
	assert.Equal(t, 2, distinct)
}

func TestBuildEncodesFeaturesAndTarget(t *testing.T) {
	mem := memory.NewGoAllocator()
	tab, err := Build(testFrame(t, mem), testConfig())
	require.NoError(t, err)

	assert.Equal(t, 4, tab.Len())
	assert.Equal(t, []string{"BORO", "VIC_AGE_GROUP", "OCCUR_HOUR", "Latitude"}, tab.FeatureNames())

	age, ok := tab.Categorical("VIC_AGE_GROUP")
	require.True(t, ok)
	assert.True(t, age.Ordered())
	assert.Equal(t, []string{"<18", "18-24", "25-44", "45-64", "65+"}, age.Levels())

	hour, ok := tab.Categorical("OCCUR_HOUR")
	require.True(t, ok)
	assert.Equal(t, []string{"14", "2", "23"}, hour.Levels())

	target := tab.Target()
	assert.Equal(t, []string{"No", "Yes"}, target.Levels())
	assert.Equal(t, tab.PositiveCode(), target.Code(0))
	assert.Equal(t, 0, target.Code(1))

	neg, pos := tab.ClassCounts()
	assert.Equal(t, 2, neg)
	assert.Equal(t, 2, pos)
}

func TestBuildMissingFeatureColumn(t *testing.T) {
	mem := memory.NewGoAllocator()
	cfg := testConfig()
	cfg.Features = append(cfg.Features, "GHOST")

	_, err := Build(testFrame(t, mem), cfg)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindConfiguration))

	var pe *errs.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "GHOST", pe.Column)
}

func TestBuildMissingTargetColumn(t *testing.T) {
	mem := memory.NewGoAllocator()
	cfg := testConfig()
	cfg.Target = "GHOST"

	_, err := Build(testFrame(t, mem), cfg)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindConfiguration))
}

func TestBuildNumericKeepsNaNForNulls(t *testing.T) {
	mem := memory.NewGoAllocator()
	lat := frame.NewFloat64("Latitude", []float64{40.1, 0}, []bool{true, false}, mem)
	flag := frame.NewBool("STATISTICAL_MURDER_FLAG", []bool{true, false}, nil, mem)
	f, err := frame.New(lat, flag)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Features = []string{"Latitude"}

	tab, err := Build(f, cfg)
	require.NoError(t, err)

	nums := tab.Numerics()
	require.Len(t, nums, 1)
	assert.Equal(t, 40.1, nums[0].Value(0))
	assert.True(t, math.IsNaN(nums[0].Value(1)))
}

func TestTakeAndDropFeatures(t *testing.T) {
	mem := memory.NewGoAllocator()
	tab, err := Build(testFrame(t, mem), testConfig())
	require.NoError(t, err)

	sub := tab.Take([]int{3, 1})
	assert.Equal(t, 2, sub.Len())
	boro, ok := sub.Categorical("BORO")
	require.True(t, ok)
	assert.Equal(t, "BROOKLYN", boro.Value(0))
	assert.Equal(t, "QUEENS", boro.Value(1))
	assert.Equal(t, tab.PositiveCode(), sub.Target().Code(0))

	trimmed := tab.DropFeatures("BORO", "Latitude")
	assert.Equal(t, []string{"VIC_AGE_GROUP", "OCCUR_HOUR"}, trimmed.FeatureNames())
	_, ok = trimmed.Categorical("BORO")
	assert.False(t, ok)
}

func TestAlignAndUndefinedRows(t *testing.T) {
	mem := memory.NewGoAllocator()
	cfg := testConfig()
	cfg.Features = []string{"BORO"}

	full, err := Build(testFrame(t, mem), cfg)
	require.NoError(t, err)

	train := full.Take([]int{0, 1}) // BRONX, QUEENS
	test := full.Take([]int{2, 3})  // BRONX, BROOKLYN

	alignedTrain, alignedTest := Align(train, test)

	trainBoro, ok := alignedTrain.Categorical("BORO")
	require.True(t, ok)
	assert.Equal(t, []string{"BRONX", "QUEENS"}, trainBoro.Levels())

	testBoro, ok := alignedTest.Categorical("BORO")
	require.True(t, ok)
	assert.Equal(t, []string{"BRONX", "QUEENS"}, testBoro.Levels())
	assert.Equal(t, UndefinedCode, testBoro.Code(1))
	assert.Equal(t, []int{1}, alignedTest.UndefinedRows())
	assert.Empty(t, alignedTrain.UndefinedRows())
}

func TestCompactPreservesOrder(t *testing.T) {
	c := NewCategorical("X", []string{"c", "a"}, true, []string{"a", "b", "c"})

	compacted := c.Compact()
	assert.Equal(t, []string{"a", "c"}, compacted.Levels())
	assert.Equal(t, 1, compacted.Code(0))
	assert.Equal(t, 0, compacted.Code(1))
	assert.True(t, compacted.Ordered())
}
