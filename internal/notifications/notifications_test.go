package notifications

import (
	"context"
	"fmt"
	"testing"

	"github.com/schoolbell-dev/schoolbell/internal/channels"
	"github.com/schoolbell-dev/schoolbell/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// fakeChannel records what was sent and fails on demand.
type fakeChannel struct {
	name    string
	sendErr error
	sent    []channels.Message
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(ctx context.Context, msg channels.Message) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	db, err := gorm.Open(dsn, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{},
		&models.Class{},
		&models.ClassMembership{},
		&models.DeviceToken{},
		&models.Notification{},
		&models.NotificationRecipient{},
		&models.DeliveryLog{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name, role string, parentID *uint) models.User {
	t.Helper()
	user := models.User{
		Name:         name,
		Email:        fmt.Sprintf("%s@example.com", name),
		PasswordHash: "x",
		Role:         role,
		ParentID:     parentID,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return user
}

func seedClass(t *testing.T, db *gorm.DB, name string, grade int) models.Class {
	t.Helper()
	class := models.Class{Name: name, Grade: grade}
	if err := db.Create(&class).Error; err != nil {
		t.Fatalf("seed class %s: %v", name, err)
	}
	return class
}

func enroll(t *testing.T, db *gorm.DB, user models.User, class models.Class) {
	t.Helper()
	membership := models.ClassMembership{
		UserID:  user.ID,
		ClassID: class.ID,
		Role:    user.Role,
	}
	if err := db.Create(&membership).Error; err != nil {
		t.Fatalf("enroll user %d in class %d: %v", user.ID, class.ID, err)
	}
}
