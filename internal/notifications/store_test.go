package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/schoolbell-dev/schoolbell/internal/models"
	"github.com/schoolbell-dev/schoolbell/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFansOutToRecipients(t *testing.T) {
	db := newTestDB(t)
	admin := seedUser(t, db, "admin1", types.RoleAdmin, nil)
	seedUser(t, db, "teacher1", types.RoleTeacher, nil)
	seedUser(t, db, "teacher2", types.RoleTeacher, nil)

	notification, err := NewStore(db).Create(context.Background(), CreateInput{
		Title:    "Staff meeting",
		Content:  "Friday at 3pm",
		Category: types.CategoryReminder,
		Target:   TargetSpec{Role: types.RoleTeacher},
	}, admin.ID)
	require.NoError(t, err)

	assert.Equal(t, admin.ID, notification.SenderID)
	assert.Equal(t, types.PriorityNormal, notification.Priority)
	assert.Len(t, notification.Recipients, 2)

	var count int64
	require.NoError(t, db.Model(&models.NotificationRecipient{}).
		Where("notification_id = ?", notification.ID).
		Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestCreateNoRecipientsLeavesNoRow(t *testing.T) {
	db := newTestDB(t)
	admin := seedUser(t, db, "admin1", types.RoleAdmin, nil)

	_, err := NewStore(db).Create(context.Background(), CreateInput{
		Title:    "Into the void",
		Content:  "Nobody will read this",
		Category: types.CategorySystem,
		Target:   TargetSpec{Role: types.RoleParent},
	}, admin.ID)
	require.ErrorIs(t, err, ErrNoRecipients)

	// The transaction must have rolled the notification row back too.
	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestCreateSanitizesTitleAndContent(t *testing.T) {
	db := newTestDB(t)
	admin := seedUser(t, db, "admin1", types.RoleAdmin, nil)
	seedUser(t, db, "student1", types.RoleStudent, nil)

	notification, err := NewStore(db).Create(context.Background(), CreateInput{
		Title:    "  <b>Fire drill</b>  ",
		Content:  "<script>alert(1)</script>Assemble outside",
		Category: types.CategoryAnnouncement,
		Target:   TargetSpec{Role: types.RoleStudent},
	}, admin.ID)
	require.NoError(t, err)

	assert.Equal(t, "Fire drill", notification.Title)
	assert.Equal(t, "alert(1)Assemble outside", notification.Content)
}

func TestCreateValidation(t *testing.T) {
	db := newTestDB(t)
	admin := seedUser(t, db, "admin1", types.RoleAdmin, nil)
	store := NewStore(db)

	cases := []struct {
		name  string
		input CreateInput
	}{
		{"empty title", CreateInput{Content: "c", Category: types.CategoryReminder, Target: TargetSpec{Role: TargetRoleAll}}},
		{"tags-only title", CreateInput{Title: "<br/>", Content: "c", Category: types.CategoryReminder, Target: TargetSpec{Role: TargetRoleAll}}},
		{"empty content", CreateInput{Title: "t", Category: types.CategoryReminder, Target: TargetSpec{Role: TargetRoleAll}}},
		{"bad category", CreateInput{Title: "t", Content: "c", Category: "gossip", Target: TargetSpec{Role: TargetRoleAll}}},
		{"bad priority", CreateInput{Title: "t", Content: "c", Category: types.CategoryReminder, Priority: "urgent", Target: TargetSpec{Role: TargetRoleAll}}},
		{"bad target role", CreateInput{Title: "t", Content: "c", Category: types.CategoryReminder, Target: TargetSpec{Role: "janitor"}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.Create(context.Background(), tc.input, admin.ID)
			var validationErr *ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestDeleteCascadesAndReportsMissing(t *testing.T) {
	db := newTestDB(t)
	admin := seedUser(t, db, "admin1", types.RoleAdmin, nil)
	seedUser(t, db, "student1", types.RoleStudent, nil)
	store := NewStore(db)

	notification, err := store.Create(context.Background(), CreateInput{
		Title:    "t",
		Content:  "c",
		Category: types.CategoryReminder,
		Target:   TargetSpec{Role: types.RoleStudent},
	}, admin.ID)
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), notification.ID))
	assert.ErrorIs(t, store.Delete(context.Background(), notification.ID), ErrNotFound)

	_, err = store.ByID(context.Background(), notification.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInboxAndMarkRead(t *testing.T) {
	db := newTestDB(t)
	admin := seedUser(t, db, "admin1", types.RoleAdmin, nil)
	student := seedUser(t, db, "student1", types.RoleStudent, nil)
	other := seedUser(t, db, "student2", types.RoleStudent, nil)
	store := NewStore(db)

	first, err := store.Create(context.Background(), CreateInput{
		Title:    "First",
		Content:  "c",
		Category: types.CategoryReminder,
		Target:   TargetSpec{Role: types.RoleStudent},
	}, admin.ID)
	require.NoError(t, err)

	second, err := store.Create(context.Background(), CreateInput{
		Title:    "Second",
		Content:  "c",
		Category: types.CategoryReminder,
		Target:   TargetSpec{Role: types.RoleStudent, UserIDs: []uint{student.ID}},
	}, admin.ID)
	require.NoError(t, err)

	entries, err := store.Inbox(context.Background(), student.ID, false)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	// Marking reads is scoped to the calling user.
	updated, err := store.MarkRead(context.Background(), other.ID, []uint{second.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 0, updated)

	updated, err = store.MarkRead(context.Background(), student.ID, []uint{first.ID, second.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, updated)

	unread, err := store.Inbox(context.Background(), student.ID, true)
	require.NoError(t, err)
	assert.Empty(t, unread)

	// Marking again is a no-op.
	updated, err = store.MarkRead(context.Background(), student.ID, []uint{first.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 0, updated)
}

func TestInboxSkipsExpired(t *testing.T) {
	db := newTestDB(t)
	admin := seedUser(t, db, "admin1", types.RoleAdmin, nil)
	student := seedUser(t, db, "student1", types.RoleStudent, nil)
	store := NewStore(db)

	expired := time.Now().Add(-time.Hour)
	_, err := store.Create(context.Background(), CreateInput{
		Title:     "Old news",
		Content:   "c",
		Category:  types.CategoryReminder,
		Target:    TargetSpec{Role: types.RoleStudent},
		ExpiresAt: &expired,
	}, admin.ID)
	require.NoError(t, err)

	entries, err := store.Inbox(context.Background(), student.ID, false)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListFilters(t *testing.T) {
	db := newTestDB(t)
	admin := seedUser(t, db, "admin1", types.RoleAdmin, nil)
	seedUser(t, db, "student1", types.RoleStudent, nil)
	store := NewStore(db)

	for _, category := range []string{types.CategoryReminder, types.CategoryAnnouncement} {
		_, err := store.Create(context.Background(), CreateInput{
			Title:    "t",
			Content:  "c",
			Category: category,
			Target:   TargetSpec{Role: types.RoleStudent},
		}, admin.ID)
		require.NoError(t, err)
	}

	all, err := store.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	reminders, err := store.List(context.Background(), ListFilter{Category: types.CategoryReminder})
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, types.CategoryReminder, reminders[0].Category)
}

func TestValidationErrorUnwrapping(t *testing.T) {
	err := validationErrorf("bad input %d", 7)
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "bad input 7", validationErr.Error())
}
