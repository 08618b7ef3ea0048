package rules

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"alarmsrv/internal/database"
	"alarmsrv/internal/models"

	"github.com/matryer/is"
)

func newTestService(t *testing.T) (*is.I, *Service) {
	t.Helper()
	is := is.New(t)

	path := filepath.Join(t.TempDir(), "alarm.db")
	is.NoErr(database.InitDB(database.Config{Path: path, BusyTimeout: 5000}))

	return is, NewService(database.NewRuleStore(database.GetDB()))
}

func validInput() RuleInput {
	return RuleInput{
		ChannelID:    1001,
		DataType:     models.DataTypeTelemetry,
		PointID:      1,
		RuleName:     "temp-high",
		WarningLevel: models.WarningLevelMedium,
		Operator:     ">",
		Value:        85.0,
		Enabled:      true,
	}
}

func TestCreateThenGetReturnsEqualRule(t *testing.T) {
	is, svc := newTestService(t)

	input := validInput()
	created, err := svc.Create(input)
	is.NoErr(err)
	is.True(created.ID > 0)
	is.True(!created.CreatedAt.IsZero())

	got, err := svc.Get(created.ID)
	is.NoErr(err)
	is.Equal(got.ChannelID, input.ChannelID)
	is.Equal(got.DataType, input.DataType)
	is.Equal(got.PointID, input.PointID)
	is.Equal(got.RuleName, input.RuleName)
	is.Equal(got.WarningLevel, input.WarningLevel)
	is.Equal(got.Operator, input.Operator)
	is.Equal(got.Value, input.Value)
	is.Equal(got.Enabled, input.Enabled)
}

func TestCreateDuplicateTuple(t *testing.T) {
	is, svc := newTestService(t)

	_, err := svc.Create(validInput())
	is.NoErr(err)

	again := validInput()
	again.Value = 90.0 // same tuple, different threshold

	_, err = svc.Create(again)
	var derr *DuplicateRuleError
	is.True(errors.As(err, &derr))
	is.Equal(derr.ChannelID, int64(1001))
	is.Equal(derr.DataType, models.DataTypeTelemetry)
	is.Equal(derr.PointID, int64(1))
	is.Equal(derr.RuleName, "temp-high")
}

func TestCreateValidation(t *testing.T) {
	is, svc := newTestService(t)

	cases := []struct {
		name   string
		mutate func(*RuleInput)
		field  string
	}{
		{"missing channel", func(in *RuleInput) { in.ChannelID = 0 }, "channel_id"},
		{"negative channel", func(in *RuleInput) { in.ChannelID = -5 }, "channel_id"},
		{"bad data type", func(in *RuleInput) { in.DataType = "X" }, "data_type"},
		{"empty data type", func(in *RuleInput) { in.DataType = "" }, "data_type"},
		{"missing point", func(in *RuleInput) { in.PointID = 0 }, "point_id"},
		{"empty rule name", func(in *RuleInput) { in.RuleName = "" }, "rule_name"},
		{"level too low", func(in *RuleInput) { in.WarningLevel = 0 }, "warning_level"},
		{"level too high", func(in *RuleInput) { in.WarningLevel = 4 }, "warning_level"},
		{"bad operator", func(in *RuleInput) { in.Operator = "=>" }, "operator"},
		{"empty operator", func(in *RuleInput) { in.Operator = "" }, "operator"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)

			input := validInput()
			tc.mutate(&input)

			_, err := svc.Create(input)
			var verr *ValidationError
			is.True(errors.As(err, &verr))
			is.Equal(verr.Field, tc.field)
		})
	}

	// nothing may have been persisted
	count, err := svc.Count()
	is.NoErr(err)
	is.Equal(count, int64(0))
}

func TestValidationReportsMostFundamentalFieldFirst(t *testing.T) {
	is, svc := newTestService(t)

	input := validInput()
	input.ChannelID = 0
	input.DataType = "X"
	input.Operator = "??"

	_, err := svc.Create(input)
	var verr *ValidationError
	is.True(errors.As(err, &verr))
	is.Equal(verr.Field, "channel_id")
}

func TestUpdate(t *testing.T) {
	is, svc := newTestService(t)

	created, err := svc.Create(validInput())
	is.NoErr(err)

	input := validInput()
	input.RuleName = "temp-critical"
	input.WarningLevel = models.WarningLevelHigh

	updated, err := svc.Update(created.ID, input)
	is.NoErr(err)
	is.Equal(updated.RuleName, "temp-critical")
	is.Equal(updated.WarningLevel, models.WarningLevelHigh)
	is.True(updated.CreatedAt.Equal(created.CreatedAt))
}

func TestUpdateNotFound(t *testing.T) {
	is, svc := newTestService(t)

	_, err := svc.Update(42, validInput())
	is.True(errors.Is(err, database.ErrNotFound))
}

func TestUpdateValidationPrecedesLookup(t *testing.T) {
	is, svc := newTestService(t)

	input := validInput()
	input.Operator = "invalid"

	_, err := svc.Update(42, input)
	var verr *ValidationError
	is.True(errors.As(err, &verr)) // validation error, not NotFound
	is.Equal(verr.Field, "operator")
}

func TestUpdateIntoDuplicateTuple(t *testing.T) {
	is, svc := newTestService(t)

	_, err := svc.Create(validInput())
	is.NoErr(err)

	other := validInput()
	other.RuleName = "temp-low"
	second, err := svc.Create(other)
	is.NoErr(err)

	_, err = svc.Update(second.ID, validInput())
	var derr *DuplicateRuleError
	is.True(errors.As(err, &derr))
}

func TestEnableDisableIdempotent(t *testing.T) {
	is, svc := newTestService(t)

	created, err := svc.Create(validInput())
	is.NoErr(err)

	time.Sleep(10 * time.Millisecond)
	first, err := svc.Disable(created.ID)
	is.NoErr(err)
	is.Equal(first.Enabled, false)
	is.True(first.UpdatedAt.After(created.UpdatedAt))

	time.Sleep(10 * time.Millisecond)
	second, err := svc.Disable(created.ID)
	is.NoErr(err)
	is.Equal(second.Enabled, false)
	is.True(second.UpdatedAt.After(first.UpdatedAt)) // each call refreshes updated_at

	time.Sleep(10 * time.Millisecond)
	enabled, err := svc.Enable(created.ID)
	is.NoErr(err)
	is.Equal(enabled.Enabled, true)
	is.True(enabled.UpdatedAt.After(second.UpdatedAt))
}

func TestEnableNotFound(t *testing.T) {
	is, svc := newTestService(t)

	_, err := svc.Enable(42)
	is.True(errors.Is(err, database.ErrNotFound))
}

func TestDeleteThenGet(t *testing.T) {
	is, svc := newTestService(t)

	created, err := svc.Create(validInput())
	is.NoErr(err)

	is.NoErr(svc.Delete(created.ID))

	_, err = svc.Get(created.ID)
	is.True(errors.Is(err, database.ErrNotFound))
}

func TestDeleteNotFound(t *testing.T) {
	is, svc := newTestService(t)

	is.True(errors.Is(svc.Delete(42), database.ErrNotFound))
}

func TestListByChannel(t *testing.T) {
	is, svc := newTestService(t)

	for i, channel := range []int64{1001, 1002, 1001} {
		input := validInput()
		input.ChannelID = channel
		input.PointID = int64(i + 1)
		_, err := svc.Create(input)
		is.NoErr(err)
	}

	list, err := svc.ListByChannel(1001)
	is.NoErr(err)
	is.Equal(len(list), 2)

	all, err := svc.ListAll()
	is.NoErr(err)
	is.Equal(len(all), 3)
}

// The full lifecycle on a fresh store.
func TestRuleLifecycle(t *testing.T) {
	is, svc := newTestService(t)

	created, err := svc.Create(RuleInput{
		ChannelID:    1001,
		DataType:     models.DataTypeTelemetry,
		PointID:      1,
		RuleName:     "temp-high",
		WarningLevel: models.WarningLevelMedium,
		Operator:     ">",
		Value:        85.0,
		Enabled:      true,
	})
	is.NoErr(err)
	is.Equal(created.ID, uint(1))

	_, err = svc.Create(RuleInput{
		ChannelID:    1001,
		DataType:     models.DataTypeTelemetry,
		PointID:      1,
		RuleName:     "temp-high",
		WarningLevel: models.WarningLevelMedium,
		Operator:     ">",
		Value:        85.0,
		Enabled:      true,
	})
	var derr *DuplicateRuleError
	is.True(errors.As(err, &derr))

	list, err := svc.ListByChannel(1001)
	is.NoErr(err)
	is.Equal(len(list), 1)
	is.Equal(list[0].ID, created.ID)

	disabled, err := svc.Disable(created.ID)
	is.NoErr(err)
	is.Equal(disabled.Enabled, false)

	is.NoErr(svc.Delete(created.ID))

	_, err = svc.Get(created.ID)
	is.True(errors.Is(err, database.ErrNotFound))
}

func TestSearchDelegation(t *testing.T) {
	is, svc := newTestService(t)

	input := validInput()
	input.Description = "boiler room sensor"
	_, err := svc.Create(input)
	is.NoErr(err)

	list, total, err := svc.Search(database.SearchFilter{Keyword: "boiler"})
	is.NoErr(err)
	is.Equal(total, int64(1))
	is.Equal(list[0].RuleName, "temp-high")
}
