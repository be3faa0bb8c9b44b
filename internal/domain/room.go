package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	apperrors "creator_collab/pkg/errors"
)

type Room struct {
	ID           uuid.UUID  `json:"id"`
	RoomID       string     `json:"room_id"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	CreatorID    string     `json:"creator_id"`
	Members      []Member   `json:"members"`
	Settings     Settings   `json:"settings"`
	Project      Project    `json:"project"`
	Files        []RoomFile `json:"files"`
	LastActivity time.Time  `json:"last_activity"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type Member struct {
	UserID   string    `json:"user_id"`
	Username string    `json:"username,omitempty"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

type Settings struct {
	IsPrivate        bool     `json:"is_private"`
	AllowFileSharing bool     `json:"allow_file_sharing"`
	MaxMembers       int      `json:"max_members"`
	AllowedRoles     []string `json:"allowed_roles"`
}

type Project struct {
	Name     string     `json:"name"`
	Deadline *time.Time `json:"deadline,omitempty"`
	Status   string     `json:"status"`
	Tags     []string   `json:"tags"`
	Priority string     `json:"priority"`
}

const (
	MemberRoleAdmin     = "admin"
	MemberRoleModerator = "moderator"
	MemberRoleMember    = "member"
)

const (
	ProjectStatusPlanning   = "planning"
	ProjectStatusInProgress = "in_progress"
	ProjectStatusReview     = "review"
	ProjectStatusCompleted  = "completed"
)

const (
	ProjectPriorityLow    = "low"
	ProjectPriorityMedium = "medium"
	ProjectPriorityHigh   = "high"
	ProjectPriorityUrgent = "urgent"
)

const (
	DefaultMaxMembers = 50
	RoomIDLength      = 8
)

// CreateRoomSpec is the creation request. Nil settings fall back to defaults.
type CreateRoomSpec struct {
	Name             string      `json:"name" validate:"required,max=100"`
	Description      string      `json:"description" validate:"max=500"`
	IsPrivate        *bool       `json:"is_private"`
	AllowFileSharing *bool       `json:"allow_file_sharing"`
	MaxMembers       *int        `json:"max_members" validate:"omitempty,min=1,max=500"`
	AllowedRoles     []string    `json:"allowed_roles" validate:"omitempty,dive,oneof=video_editor content_creator youtuber"`
	Project          ProjectSpec `json:"project"`
}

type ProjectSpec struct {
	Name     string     `json:"name" validate:"max=100"`
	Deadline *time.Time `json:"deadline"`
	Status   string     `json:"status" validate:"omitempty,oneof=planning in_progress review completed"`
	Tags     []string   `json:"tags" validate:"max=20,dive,required,max=50"`
	Priority string     `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
}

// SettingsPatch holds a partial update; nil fields stay unchanged.
type SettingsPatch struct {
	Name             *string    `json:"name" validate:"omitempty,min=1,max=100"`
	Description      *string    `json:"description" validate:"omitempty,max=500"`
	IsPrivate        *bool      `json:"is_private"`
	AllowFileSharing *bool      `json:"allow_file_sharing"`
	MaxMembers       *int       `json:"max_members" validate:"omitempty,min=1,max=500"`
	AllowedRoles     *[]string  `json:"allowed_roles" validate:"omitempty,dive,oneof=video_editor content_creator youtuber"`
	ProjectName      *string    `json:"project_name" validate:"omitempty,max=100"`
	Deadline         *time.Time `json:"deadline"`
	Status           *string    `json:"status" validate:"omitempty,oneof=planning in_progress review completed"`
	Tags             *[]string  `json:"tags" validate:"omitempty,max=20,dive,required,max=50"`
	Priority         *string    `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
}

// RoomFilter drives public room search.
type RoomFilter struct {
	Query string
	Role  string
	Tag   string
	Limit int
}

// NewRoomID derives the short shareable identifier from a random uuid.
func NewRoomID() string {
	return uuid.New().String()[:RoomIDLength]
}

func NewRoom(key uuid.UUID, roomID string, creator Identity, spec CreateRoomSpec, now time.Time) (Room, Effects) {
	settings := Settings{
		IsPrivate:        false,
		AllowFileSharing: true,
		MaxMembers:       DefaultMaxMembers,
		AllowedRoles:     slices.Clone(UserRoles),
	}
	if spec.IsPrivate != nil {
		settings.IsPrivate = *spec.IsPrivate
	}
	if spec.AllowFileSharing != nil {
		settings.AllowFileSharing = *spec.AllowFileSharing
	}
	if spec.MaxMembers != nil {
		settings.MaxMembers = *spec.MaxMembers
	}
	if spec.AllowedRoles != nil {
		settings.AllowedRoles = lo.Uniq(spec.AllowedRoles)
	}

	project := Project{
		Name:     spec.Project.Name,
		Deadline: spec.Project.Deadline,
		Status:   lo.CoalesceOrEmpty(spec.Project.Status, ProjectStatusPlanning),
		Tags:     normalizeTags(spec.Project.Tags),
		Priority: lo.CoalesceOrEmpty(spec.Project.Priority, ProjectPriorityMedium),
	}

	room := Room{
		ID:          key,
		RoomID:      roomID,
		Name:        strings.TrimSpace(spec.Name),
		Description: strings.TrimSpace(spec.Description),
		CreatorID:   creator.UserID,
		Members: []Member{{
			UserID:   creator.UserID,
			Username: creator.Username,
			Role:     MemberRoleAdmin,
			JoinedAt: now,
		}},
		Settings:     settings,
		Project:      project,
		Files:        []RoomFile{},
		LastActivity: now,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	return room, announce(fmt.Sprintf("%s created the room", creator.DisplayName()))
}

func (r Room) Member(userID string) (Member, bool) {
	return lo.Find(r.Members, func(m Member) bool { return m.UserID == userID })
}

func (r Room) IsMember(userID string) bool {
	_, ok := r.Member(userID)
	return ok
}

// RoleOf returns the member role of userID, or "" for non-members.
func (r Room) RoleOf(userID string) string {
	m, _ := r.Member(userID)
	return m.Role
}

func (r Room) IsAdmin(userID string) bool {
	return r.RoleOf(userID) == MemberRoleAdmin
}

func (r Room) CanModerate(userID string) bool {
	return IsModeratorRole(r.RoleOf(userID))
}

// VisibleTo reports whether userID may read the room.
func (r Room) VisibleTo(userID string) bool {
	return !r.Settings.IsPrivate || r.IsMember(userID)
}

// FilesVisibleTo lists what userID may see: every file for members, only
// public files for everyone else.
func (r Room) FilesVisibleTo(userID string) []RoomFile {
	if r.IsMember(userID) {
		return append([]RoomFile{}, r.Files...)
	}
	return lo.Filter(r.Files, func(f RoomFile, _ int) bool { return f.IsPublic })
}

func IsModeratorRole(role string) bool {
	return role == MemberRoleAdmin || role == MemberRoleModerator
}

func IsValidMemberRole(role string) bool {
	switch role {
	case MemberRoleAdmin, MemberRoleModerator, MemberRoleMember:
		return true
	}
	return false
}

func (r Room) clone() Room {
	r.Members = slices.Clone(r.Members)
	r.Settings.AllowedRoles = slices.Clone(r.Settings.AllowedRoles)
	r.Project.Tags = slices.Clone(r.Project.Tags)
	r.Files = slices.Clone(r.Files)
	return r
}

func (r *Room) touch(now time.Time) {
	r.LastActivity = now
	r.UpdatedAt = now
}

func AddMember(r Room, who Identity, now time.Time) (Room, Effects, error) {
	if !r.IsActive {
		return r, nil, apperrors.ErrRoomInactive
	}
	if r.IsMember(who.UserID) {
		return r, nil, apperrors.ErrAlreadyMember
	}
	if len(r.Members) >= r.Settings.MaxMembers {
		return r, nil, apperrors.WithDetail(apperrors.ErrRoomFull, "room allows at most %d members", r.Settings.MaxMembers)
	}
	if len(r.Settings.AllowedRoles) > 0 && !slices.Contains(r.Settings.AllowedRoles, who.Role) {
		return r, nil, apperrors.WithDetail(apperrors.ErrRoleNotAllowed, "role %q is not in %v", who.Role, r.Settings.AllowedRoles)
	}

	next := r.clone()
	next.Members = append(next.Members, Member{
		UserID:   who.UserID,
		Username: who.Username,
		Role:     MemberRoleMember,
		JoinedAt: now,
	})
	next.touch(now)

	return next, announce(fmt.Sprintf("%s joined the room", who.DisplayName())), nil
}

func RemoveMember(r Room, who Identity, now time.Time) (Room, Effects, error) {
	if !r.IsMember(who.UserID) {
		return r, nil, apperrors.ErrNotMember
	}

	next := r.clone()
	next.Members = lo.Reject(next.Members, func(m Member, _ int) bool { return m.UserID == who.UserID })
	next.touch(now)

	return next, announce(fmt.Sprintf("%s left the room", who.DisplayName())), nil
}

func ApplySettings(r Room, byUserID string, patch SettingsPatch, now time.Time) (Room, Effects, error) {
	if !r.IsAdmin(byUserID) {
		return r, nil, apperrors.WithDetail(apperrors.ErrForbidden, "only room admins can update settings")
	}
	if patch.MaxMembers != nil && *patch.MaxMembers < len(r.Members) {
		return r, nil, apperrors.WithDetail(apperrors.ErrValidation,
			"max_members cannot be lower than the current member count (%d)", len(r.Members))
	}

	next := r.clone()
	if patch.Name != nil {
		next.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		next.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.IsPrivate != nil {
		next.Settings.IsPrivate = *patch.IsPrivate
	}
	if patch.AllowFileSharing != nil {
		next.Settings.AllowFileSharing = *patch.AllowFileSharing
	}
	if patch.MaxMembers != nil {
		next.Settings.MaxMembers = *patch.MaxMembers
	}
	if patch.AllowedRoles != nil {
		next.Settings.AllowedRoles = lo.Uniq(*patch.AllowedRoles)
	}
	if patch.ProjectName != nil {
		next.Project.Name = *patch.ProjectName
	}
	if patch.Deadline != nil {
		deadline := *patch.Deadline
		next.Project.Deadline = &deadline
	}
	if patch.Status != nil {
		next.Project.Status = *patch.Status
	}
	if patch.Tags != nil {
		next.Project.Tags = normalizeTags(*patch.Tags)
	}
	if patch.Priority != nil {
		next.Project.Priority = *patch.Priority
	}
	next.touch(now)

	return next, persist(), nil
}

func SetMemberRole(r Room, byUserID, targetUserID, role string, now time.Time) (Room, Effects, error) {
	if !IsValidMemberRole(role) {
		return r, nil, apperrors.WithDetail(apperrors.ErrValidation, "role must be one of admin, moderator, member")
	}
	if !r.IsAdmin(byUserID) {
		return r, nil, apperrors.WithDetail(apperrors.ErrForbidden, "only room admins can change member roles")
	}
	_, idx, ok := lo.FindIndexOf(r.Members, func(m Member) bool { return m.UserID == targetUserID })
	if !ok {
		return r, nil, apperrors.ErrMemberNotFound
	}

	next := r.clone()
	next.Members[idx].Role = role
	next.touch(now)

	return next, persist(), nil
}

func AttachFile(r Room, file RoomFile, now time.Time) (Room, Effects, error) {
	if !r.IsActive {
		return r, nil, apperrors.ErrRoomInactive
	}
	if !r.IsMember(file.UploadedBy) {
		return r, nil, apperrors.ErrNotMember
	}
	if !r.Settings.AllowFileSharing {
		return r, nil, apperrors.ErrFileSharingDisabled
	}

	next := r.clone()
	next.Files = append(next.Files, file)
	next.touch(now)

	return next, persist(), nil
}

// DetachFile removes a file entry. The uploader and room moderators may do so.
func DetachFile(r Room, byUserID, filename string, now time.Time) (Room, RoomFile, Effects, error) {
	file, idx, ok := lo.FindIndexOf(r.Files, func(f RoomFile) bool { return f.Filename == filename })
	if !ok {
		return r, RoomFile{}, nil, apperrors.ErrFileNotFound
	}
	if file.UploadedBy != byUserID && !r.CanModerate(byUserID) {
		return r, RoomFile{}, nil, apperrors.WithDetail(apperrors.ErrForbidden, "only the uploader or a room moderator can delete this file")
	}

	next := r.clone()
	next.Files = slices.Delete(next.Files, idx, idx+1)
	next.touch(now)

	return next, file, persist(), nil
}

func Deactivate(r Room, now time.Time) (Room, Effects) {
	if !r.IsActive {
		return r, nil
	}
	next := r.clone()
	next.IsActive = false
	next.touch(now)
	return next, persist()
}

// Matches applies the public search filter.
func (f RoomFilter) Matches(r Room) bool {
	if r.Settings.IsPrivate || !r.IsActive {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		haystacks := []string{r.Name, r.Description, r.Project.Name}
		if !lo.SomeBy(haystacks, func(s string) bool { return strings.Contains(strings.ToLower(s), q) }) {
			return false
		}
	}
	if f.Role != "" && len(r.Settings.AllowedRoles) > 0 && !slices.Contains(r.Settings.AllowedRoles, f.Role) {
		return false
	}
	if f.Tag != "" && !slices.Contains(r.Project.Tags, strings.ToLower(f.Tag)) {
		return false
	}
	return true
}

func normalizeTags(tags []string) []string {
	out := lo.Map(tags, func(t string, _ int) string { return strings.ToLower(strings.TrimSpace(t)) })
	return lo.Uniq(lo.Compact(out))
}
