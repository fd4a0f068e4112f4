package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/turf-reservation/internal/lattice"
	"github.com/iliyamo/turf-reservation/internal/model"
	"github.com/iliyamo/turf-reservation/internal/repository"
	"github.com/iliyamo/turf-reservation/internal/testfixtures"
)

func unit(t *testing.T, date string, hour int) lattice.Unit {
	t.Helper()
	d, err := lattice.ParseDate(date)
	if err != nil {
		t.Fatal(err)
	}
	return lattice.Unit{Date: d, Start: lattice.MustTimeOfDay(hour, 0)}
}

// reserve writes a reservation and its units directly, bypassing the engine.
func reserve(t *testing.T, h *testfixtures.SQLiteHarness, userID uint64, units ...lattice.Unit) uint64 {
	t.Helper()
	ctx := context.Background()
	res := model.Reservation{
		UserID:          userID,
		ReservationDate: units[0].DateString(),
		StartTime:       units[0].Start.String(),
		EndTime:         (units[len(units)-1].Start + lattice.UnitWidth).String(),
		Amount:          decimal.NewFromInt(500),
		CreatedAt:       time.Now().UTC(),
	}
	err := h.DB.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := h.Reservations.CreateTx(ctx, tx, &res); err != nil {
			return err
		}
		writes := make([]repository.SlotWrite, len(units))
		for i, u := range units {
			writes[i] = repository.SlotWrite{Unit: u, Status: model.SlotUnavailable, ReservationID: &res.ID}
		}
		return h.Slots.SetManyTx(ctx, tx, writes)
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	return res.ID
}

func TestSetManyRejectsTakenUnit(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	uid := h.SeedUser(t, "Asha", "9000000001")
	reserve(t, h, uid, unit(t, "2025-03-10", 10))

	err := h.DB.WithTx(ctx, func(tx *sqlx.Tx) error {
		return h.Slots.SetManyTx(ctx, tx, []repository.SlotWrite{
			{Unit: unit(t, "2025-03-10", 9), Status: model.SlotMaintenance},
			{Unit: unit(t, "2025-03-10", 10), Status: model.SlotMaintenance},
		})
	})
	var taken *repository.UnitTakenError
	if !errors.As(err, &taken) {
		t.Fatalf("SetManyTx error = %v, want *UnitTakenError", err)
	}
	if taken.Date != "2025-03-10" || taken.Time != "10:00" {
		t.Errorf("taken unit = %s %s, want 2025-03-10 10:00", taken.Date, taken.Time)
	}
	if !errors.Is(err, repository.ErrConflict) {
		t.Error("UnitTakenError does not match ErrConflict")
	}
	// 09:00 was written inside the rolled back transaction
	if n := h.CountRows(t, "slot_units"); n != 1 {
		t.Errorf("slot rows = %d, want 1", n)
	}
}

func TestStatusesAndGet(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	uid := h.SeedUser(t, "", "9000000002")
	resID := reserve(t, h, uid, unit(t, "2025-03-10", 23), unit(t, "2025-03-11", 0))

	err := h.DB.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := h.Slots.StatusesTx(ctx, tx, []lattice.Unit{
			unit(t, "2025-03-10", 22), unit(t, "2025-03-10", 23), unit(t, "2025-03-11", 0),
		})
		if err != nil {
			return err
		}
		if len(rows) != 2 {
			t.Errorf("StatusesTx returned %d rows, want 2", len(rows))
		}
		row, ok := rows["2025-03-11 00:00"]
		if !ok || row.Status != model.SlotUnavailable || row.ReservationID == nil || *row.ReservationID != resID {
			t.Errorf("row for 00:00 next day = %+v", row)
		}

		if _, err := h.Slots.GetTx(ctx, tx, unit(t, "2025-03-10", 22)); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("GetTx on free unit error = %v, want ErrNotFound", err)
		}
		got, err := h.Slots.GetTx(ctx, tx, unit(t, "2025-03-10", 23))
		if err != nil {
			return err
		}
		if got.Status != model.SlotUnavailable {
			t.Errorf("GetTx status = %s", got.Status)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestMarkAndClearMaintenance(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	uid := h.SeedUser(t, "", "9000000003")
	reserve(t, h, uid, unit(t, "2025-03-10", 8))

	mark := func(u lattice.Unit) bool {
		var created bool
		if err := h.DB.WithTx(ctx, func(tx *sqlx.Tx) error {
			var err error
			created, err = h.Slots.MarkMaintenanceTx(ctx, tx, u)
			return err
		}); err != nil {
			t.Fatalf("MarkMaintenanceTx: %v", err)
		}
		return created
	}
	clear := func(u lattice.Unit) bool {
		var removed bool
		if err := h.DB.WithTx(ctx, func(tx *sqlx.Tx) error {
			var err error
			removed, err = h.Slots.ClearMaintenanceTx(ctx, tx, u)
			return err
		}); err != nil {
			t.Fatalf("ClearMaintenanceTx: %v", err)
		}
		return removed
	}

	if !mark(unit(t, "2025-03-10", 7)) {
		t.Error("first mark did not create a row")
	}
	if mark(unit(t, "2025-03-10", 7)) {
		t.Error("second mark created a row")
	}
	if mark(unit(t, "2025-03-10", 8)) {
		t.Error("mark over a reservation created a row")
	}
	if clear(unit(t, "2025-03-10", 8)) {
		t.Error("clear removed a reservation-held unit")
	}
	if !clear(unit(t, "2025-03-10", 7)) {
		t.Error("clear did not remove the maintenance row")
	}

	rows, err := h.Slots.ListFrom(ctx, unit(t, "2025-03-10", 0).Date)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].SlotTime != "08:00" || rows[0].Status != model.SlotUnavailable {
		t.Errorf("remaining rows = %+v", rows)
	}
}

func TestListFrom(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	uid := h.SeedUser(t, "", "9000000004")
	reserve(t, h, uid, unit(t, "2025-03-09", 20))
	resID := reserve(t, h, uid, unit(t, "2025-03-11", 6), unit(t, "2025-03-11", 7))
	reserve(t, h, uid, unit(t, "2025-03-10", 15))

	rows, err := h.Slots.ListFrom(ctx, unit(t, "2025-03-10", 0).Date)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, r := range rows {
		got = append(got, r.Key())
	}
	want := []string{"2025-03-10 15:00", "2025-03-11 06:00", "2025-03-11 07:00"}
	if len(got) != len(want) {
		t.Fatalf("ListFrom = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ListFrom[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	owned, err := h.Slots.ListByReservation(ctx, resID)
	if err != nil {
		t.Fatal(err)
	}
	if len(owned) != 2 {
		t.Errorf("ListByReservation = %d rows, want 2", len(owned))
	}
}

func TestReservationRoundTrip(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	uid := h.SeedUser(t, "", "9000000005")
	id := reserve(t, h, uid, unit(t, "2025-03-10", 18), unit(t, "2025-03-10", 19))

	got, err := h.Reservations.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.StartTime != "18:00" || got.EndTime != "20:00" || !got.Amount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("reservation = %+v", got)
	}
	if _, err := h.Reservations.GetByID(ctx, id+100); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("GetByID missing error = %v", err)
	}
}

func TestUsers(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	id, err := h.Users.Create(ctx, "  Ravi ", " 9000000006 ")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := h.Users.Create(ctx, "Other", "9000000006"); !errors.Is(err, repository.ErrPhoneExists) {
		t.Errorf("duplicate Create error = %v, want ErrPhoneExists", err)
	}

	u, err := h.Users.GetByPhone(ctx, "9000000006")
	if err != nil {
		t.Fatalf("GetByPhone: %v", err)
	}
	if u.ID != id || u.Name == nil || *u.Name != "Ravi" || u.LastBookingDate != nil {
		t.Errorf("user = %+v", u)
	}

	if err := h.Users.Rename(ctx, "9000000006", "Ravi K"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if err := h.Users.Rename(ctx, "9000000006", "Ravi K"); err != nil {
		t.Fatalf("Rename to the same name: %v", err)
	}
	if err := h.Users.Rename(ctx, "0000", "Nobody"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Rename unknown error = %v, want ErrNotFound", err)
	}

	err = h.DB.WithTx(ctx, func(tx *sqlx.Tx) error {
		ok, err := h.Users.ExistsTx(ctx, tx, id)
		if err != nil || !ok {
			t.Errorf("ExistsTx(%d) = %v, %v", id, ok, err)
		}
		ok, err = h.Users.ExistsTx(ctx, tx, id+1)
		if err != nil || ok {
			t.Errorf("ExistsTx(%d) = %v, %v", id+1, ok, err)
		}
		return h.Users.TouchLastBookingTx(ctx, tx, id, unit(t, "2025-04-01", 0).Date)
	})
	if err != nil {
		t.Fatal(err)
	}
	u, _ = h.Users.GetByID(ctx, id)
	if u.LastBookingDate == nil || *u.LastBookingDate != "2025-04-01" || *u.Name != "Ravi K" {
		t.Errorf("user after touch = %+v", u)
	}
	if _, err := h.Users.GetByPhone(ctx, "123"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("GetByPhone unknown error = %v", err)
	}
}

func TestAdmins(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	if n, _ := h.Admins.Count(ctx); n != 0 {
		t.Fatalf("Count on empty table = %d", n)
	}
	id, err := h.Admins.Create(ctx, " Root ", "pa55word", 4)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := h.Admins.Create(ctx, "root", "another-pass", 4); !errors.Is(err, repository.ErrUsernameExists) {
		t.Errorf("duplicate Create error = %v", err)
	}
	a, err := h.Admins.GetByUsername(ctx, "ROOT")
	if err != nil || a.ID != id {
		t.Fatalf("GetByUsername = %+v, %v", a, err)
	}
	old := a.PasswordHash
	if err := h.Admins.UpdatePassword(ctx, id, "n3w-password", 4); err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}
	a, _ = h.Admins.GetByUsername(ctx, "root")
	if a.PasswordHash == old {
		t.Error("password hash unchanged")
	}
	if err := h.Admins.UpdatePassword(ctx, id+9, "n3w-password", 4); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("UpdatePassword unknown error = %v", err)
	}
	if n, _ := h.Admins.Count(ctx); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestReports(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	today := unit(t, "2025-03-10", 0).Date

	asha := h.SeedUser(t, "Asha", "9000000010")
	ravi := h.SeedUser(t, "Ravi", "9000000011")
	reserve(t, h, asha, unit(t, "2025-02-20", 18))
	reserve(t, h, asha, unit(t, "2025-03-10", 23), unit(t, "2025-03-11", 0))
	reserve(t, h, ravi, unit(t, "2025-03-10", 9))
	reserve(t, h, ravi, unit(t, "2025-03-15", 17))

	rows, err := h.Reports.BookingsOn(ctx, today)
	if err != nil {
		t.Fatalf("BookingsOn: %v", err)
	}
	if len(rows) != 2 || rows[0].StartTime != "09:00" || rows[1].PhoneNumber != "9000000010" {
		t.Errorf("BookingsOn = %+v", rows)
	}

	d, err := h.Reports.Dashboard(ctx, today)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if d.TodayCount != 2 || d.Upcoming != 1 || d.Past != 1 || d.Users != 2 {
		t.Errorf("Dashboard counts = %+v", d)
	}
	if len(d.ByMonth) != 2 || d.ByMonth[0] != (repository.MonthCount{Month: "2025-02", Count: 1}) || d.ByMonth[1].Count != 3 {
		t.Errorf("Dashboard by month = %+v", d.ByMonth)
	}

	users, err := h.Reports.Users(ctx, today)
	if err != nil {
		t.Fatalf("Users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("Users = %d rows", len(users))
	}
	a := users[0]
	if a.TotalBookings != 2 || a.LastPast == nil || *a.LastPast != "2025-02-20" || a.NextUpcoming == nil || *a.NextUpcoming != "2025-03-10" {
		t.Errorf("Asha summary = %+v", a)
	}

	detail, err := h.Reports.UserDetail(ctx, "9000000010", today)
	if err != nil {
		t.Fatalf("UserDetail: %v", err)
	}
	if detail.TotalBookings != 2 || detail.TotalHours != 3 || len(detail.Upcoming) != 1 || len(detail.Past) != 1 {
		t.Errorf("UserDetail = %+v", detail)
	}
	if _, err := h.Reports.UserDetail(ctx, "nope", today); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("UserDetail unknown error = %v", err)
	}
}
