package notifications

import (
	"context"
	"fmt"

	"github.com/schoolbell-dev/schoolbell/internal/models"
	"github.com/schoolbell-dev/schoolbell/internal/types"
	"gorm.io/gorm"
)

// TargetRoleAll targets every role the grade/class/user filters match.
const TargetRoleAll = "all"

// TargetSpec describes who a notification is addressed to. Grade and class
// targeting resolve through class memberships; parents resolve through
// their children.
type TargetSpec struct {
	Role     string `json:"target_role"`
	GradeIDs []int  `json:"target_grade_ids,omitempty"`
	ClassIDs []uint `json:"target_class_ids,omitempty"`
	UserIDs  []uint `json:"target_user_ids,omitempty"`
}

func (t TargetSpec) Validate() error {
	if t.Role != TargetRoleAll && !types.ValidRole(t.Role) {
		return fmt.Errorf("invalid target role %q", t.Role)
	}
	return nil
}

type Recipient struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
}

// Resolver turns a targeting spec into a deduplicated recipient set.
type Resolver struct {
	db *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// Resolve returns the deduplicated {userID, role} set the spec matches.
// The result carries no ordering semantics. An empty result is not an
// error here; the store treats it as one.
func (r *Resolver) Resolve(ctx context.Context, spec TargetSpec) ([]Recipient, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	var users []models.User

	scoped := len(spec.UserIDs) > 0 || len(spec.ClassIDs) > 0 || len(spec.GradeIDs) > 0

	if !scoped {
		// Role-wide broadcast.
		query := r.db.WithContext(ctx).Model(&models.User{})
		if spec.Role != TargetRoleAll {
			query = query.Where("role = ?", spec.Role)
		}
		if err := query.Find(&users).Error; err != nil {
			return nil, fmt.Errorf("failed to resolve recipients by role: %w", err)
		}
		return dedupe(users), nil
	}

	if len(spec.UserIDs) > 0 {
		var explicit []models.User
		query := r.db.WithContext(ctx).Where("id IN ?", spec.UserIDs)
		if spec.Role != TargetRoleAll {
			query = query.Where("role = ?", spec.Role)
		}
		if err := query.Find(&explicit).Error; err != nil {
			return nil, fmt.Errorf("failed to resolve explicit recipients: %w", err)
		}
		users = append(users, explicit...)
	}

	classIDs := spec.ClassIDs
	if len(spec.GradeIDs) > 0 {
		var gradeClassIDs []uint
		err := r.db.WithContext(ctx).
			Model(&models.Class{}).
			Where("grade IN ?", spec.GradeIDs).
			Pluck("id", &gradeClassIDs).Error
		if err != nil {
			return nil, fmt.Errorf("failed to resolve classes by grade: %w", err)
		}
		classIDs = append(classIDs, gradeClassIDs...)
	}

	if len(classIDs) > 0 {
		members, err := r.classMembers(ctx, classIDs, spec.Role)
		if err != nil {
			return nil, err
		}
		users = append(users, members...)
	}

	return dedupe(users), nil
}

// classMembers returns the users a class-scoped target matches. Parents are
// not class members themselves, so targeting them walks student -> parent.
func (r *Resolver) classMembers(ctx context.Context, classIDs []uint, role string) ([]models.User, error) {
	if role == types.RoleParent {
		var parents []models.User
		err := r.db.WithContext(ctx).
			Where("role = ? AND id IN (?)", types.RoleParent,
				r.db.Model(&models.User{}).
					Select("parent_id").
					Where("parent_id IS NOT NULL AND id IN (?)",
						r.db.Model(&models.ClassMembership{}).
							Select("user_id").
							Where("class_id IN ?", classIDs))).
			Find(&parents).Error
		if err != nil {
			return nil, fmt.Errorf("failed to resolve parents by class: %w", err)
		}
		return parents, nil
	}

	var members []models.User
	query := r.db.WithContext(ctx).
		Where("id IN (?)", r.db.Model(&models.ClassMembership{}).
			Select("user_id").
			Where("class_id IN ?", classIDs))
	if role != TargetRoleAll {
		query = query.Where("role = ?", role)
	}
	if err := query.Find(&members).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve class members: %w", err)
	}
	return members, nil
}

func dedupe(users []models.User) []Recipient {
	seen := make(map[uint]bool, len(users))
	recipients := make([]Recipient, 0, len(users))
	for _, user := range users {
		if seen[user.ID] {
			continue
		}
		seen[user.ID] = true
		recipients = append(recipients, Recipient{UserID: user.ID, Role: user.Role})
	}
	return recipients
}
