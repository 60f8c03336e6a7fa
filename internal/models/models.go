// Package models defines the data structures (models) that map to database tables.
// GORM uses these structs to generate SQL queries and map database rows back to Go values.
// The struct field tags (the backtick strings like `gorm:"..."`) tell GORM how to handle
// each field: its column type, constraints, default values, and relationships.
//
// The data model represents a game-scheduling platform where:
//   - Users form Groups (standing rosters of players)
//   - Games are created from GameTemplates, either one-off or generated on a
//     cron schedule via a RecurringGame
//   - Each Game has 1 or 2 GameTeams (the in-game sides)
//   - GameInvitations track who was asked to play, on which team, and whether
//     they accepted — with GroupGameInvitations recording group-level invites
//     before they are expanded to individual rows
//
// A "Group" and a "GameTeam" are deliberately different things: a Group is a
// durable roster used as an invitation target ("Sunday FC"), while a GameTeam
// is one side of a single game ("Reds" vs "Blues").
package models

import (
	"time"

	// uuid generates the primary keys for rows we create application-side.
	// Users are the exception: their ID is the identity provider's subject
	// claim, so it arrives from outside and is never generated here.
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- Enums ---
// Go doesn't have a built-in enum keyword, so we simulate them using a named string type
// plus constants. This gives us type safety while keeping the values human-readable
// in the database.

// GameType describes what sport a game is.
type GameType string

const (
	GameTypeFootball5ASide  GameType = "football_5_a_side"
	GameTypeFootball11ASide GameType = "football_11_a_side"
	GameTypeBasketball      GameType = "basketball"
	GameTypeTennis          GameType = "tennis"
	GameTypeBadminton       GameType = "badminton"
	GameTypeCricket         GameType = "cricket"
	GameTypeRugby           GameType = "rugby"
	GameTypeHockey          GameType = "hockey"
	GameTypeOther           GameType = "other"
)

// ValidGameType reports whether s is one of the known game types.
func ValidGameType(s string) bool {
	switch GameType(s) {
	case GameTypeFootball5ASide, GameTypeFootball11ASide, GameTypeBasketball,
		GameTypeTennis, GameTypeBadminton, GameTypeCricket, GameTypeRugby,
		GameTypeHockey, GameTypeOther:
		return true
	}
	return false
}

// GameStatus tracks the lifecycle of a single game occurrence.
type GameStatus string

const (
	GameStatusScheduled  GameStatus = "scheduled"   // Game is on the calendar but hasn't started
	GameStatusInProgress GameStatus = "in_progress" // Game is currently being played
	GameStatusCompleted  GameStatus = "completed"   // Game has finished
	GameStatusCancelled  GameStatus = "cancelled"   // Game was called off
)

// InvitationStatus tracks a user's response to a game invitation.
// Transitions: pending → accepted or declined; accepted ↔ declined is allowed
// (people change their plans), but a response never goes back to pending.
type InvitationStatus string

const (
	InvitationStatusPending  InvitationStatus = "pending"
	InvitationStatusAccepted InvitationStatus = "accepted"
	InvitationStatusDeclined InvitationStatus = "declined"
)

// --- Models ---
// Each struct below maps to a database table. GORM uses the struct name (snake_cased and
// pluralized) as the table name by default: User -> users, Group -> groups, etc.

// User represents a registered person in the system.
// The ID is the identity provider's subject claim ("sub") from the JWT — not a
// UUID we mint. A row only exists once the user has explicitly created their
// profile via POST /users; until then, authenticated requests that need a
// profile return 404.
type User struct {
	ID        string `gorm:"primaryKey"`           // Identity provider subject; durable across sessions
	Username  string `gorm:"uniqueIndex;not null"` // Public handle shown in search results
	FirstName string `gorm:"not null"`
	LastName  string `gorm:"not null"`
	Email     string `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time
}

// Group is a named, durable roster of users ("Sunday FC").
// Groups exist so a whole roster can be invited to a game in one step.
// The creator is automatically a member — inserted in the same transaction
// as the group itself.
type Group struct {
	ID              string `gorm:"primaryKey"`
	Name            string `gorm:"not null"`
	CreatedByUserID string `gorm:"not null"`
	Creator         User   `gorm:"foreignKey:CreatedByUserID"` // GORM relationship: preloads the User struct when queried
	CreatedAt       time.Time
	Members         []GroupMember `gorm:"foreignKey:GroupID"`
}

// BeforeCreate generates the group's ID if the caller didn't set one.
func (g *Group) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}

// GroupMember is a join table placing a User in a Group.
// Composite primary key: a user can only be a member of a group once, and
// repeated inserts are deduplicated rather than erroring.
type GroupMember struct {
	GroupID string `gorm:"primaryKey"`
	UserID  string `gorm:"primaryKey"`
	Group   Group  `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
	User    User   `gorm:"foreignKey:UserID"`
}

// GameTemplate holds everything about a game that doesn't change between
// occurrences: what's being played, where, for how long, and who set it up.
// A one-off game has exactly one instance pointing at its template; a
// recurring game spawns many instances from the same template.
type GameTemplate struct {
	ID                string   `gorm:"primaryKey"`
	Title             string   `gorm:"not null"`
	GameType          GameType `gorm:"type:game_type;not null"`
	LocationLatitude  float64  `gorm:"type:decimal(9,6);not null"`
	LocationLongitude float64  `gorm:"type:decimal(9,6);not null"`
	LocationName      *string  // Optional human-readable venue name; pointer = nullable
	DurationMinutes   int      `gorm:"not null"`
	CreatedByUserID   string   `gorm:"not null"`
	Creator           User     `gorm:"foreignKey:CreatedByUserID"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (t *GameTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// GameTemplateTeam is the template-level definition of one side of the game.
// When an instance is materialized, each template team is copied to a
// GameTeam row belonging to that instance.
type GameTemplateTeam struct {
	ID         string       `gorm:"primaryKey"`
	TemplateID string       `gorm:"not null"`
	Template   GameTemplate `gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE"`
	Name       string       `gorm:"not null"`
	Color      *string
	Position   int `gorm:"not null"` // 1-based display order; also disambiguates "team A" vs "team B"
	CreatedAt  time.Time
}

func (t *GameTemplateTeam) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// GameTemplateInvitation records who should be invited every time an
// instance is generated from the template. Exactly one of UserID (a direct
// invite) or GroupID (invite the whole roster) is set.
type GameTemplateInvitation struct {
	ID         string           `gorm:"primaryKey"`
	TemplateID string           `gorm:"not null"`
	Template   GameTemplate     `gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE"`
	UserID     *string          // Direct invitee; nil for group invitations
	GroupID    *string          // Invited group; nil for direct invitations
	TeamID     string           `gorm:"not null"` // Which template team the invitee is assigned to
	Team       GameTemplateTeam `gorm:"foreignKey:TeamID"`
	CreatedAt  time.Time
}

func (i *GameTemplateInvitation) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// RecurringGame drives the periodic materialization of Game rows from a
// template. The cron schedule says when occurrences happen; the date range
// bounds the series. LastGeneratedDate is a high-water mark so the
// materialization job (and the initial generation at create time) never
// produces the same occurrence twice.
type RecurringGame struct {
	ID                string       `gorm:"primaryKey"`
	TemplateID        string       `gorm:"not null"`
	Template          GameTemplate `gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE"`
	CronSchedule      string       `gorm:"not null"` // Standard 5-field cron expression
	StartDate         time.Time    `gorm:"type:date;not null"`
	EndDate           *time.Time   `gorm:"type:date"` // nil = open-ended series
	LastGeneratedDate *time.Time   `gorm:"type:date"`
	IsActive          bool         `gorm:"not null;default:true"`
	CreatedAt         time.Time
}

func (r *RecurringGame) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Game is a concrete occurrence that people actually show up to.
// One-off games have a nil RecurringGameID and OccurrenceDate; recurring
// instances carry both so the generator can dedupe per occurrence date.
type Game struct {
	ID              string         `gorm:"primaryKey"`
	TemplateID      string         `gorm:"not null"`
	Template        GameTemplate   `gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE"`
	RecurringGameID *string        // nil for one-off games
	RecurringGame   *RecurringGame `gorm:"foreignKey:RecurringGameID"`
	ScheduledTime   time.Time      `gorm:"not null"`
	OccurrenceDate  *time.Time     `gorm:"type:date"` // The cron occurrence this instance was generated for
	Status          GameStatus     `gorm:"type:game_status;not null;default:'scheduled'"`
	CreatedAt       time.Time
}

func (g *Game) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}

// GameTeam is one side of a specific game instance (not the same as Group).
// A game has 1 team (casual kick-about) or 2 teams (match play).
type GameTeam struct {
	ID             string  `gorm:"primaryKey"`
	GameID         string  `gorm:"not null"`
	Game           Game    `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE"`
	TemplateTeamID *string // Which template team this was copied from; nil if created ad hoc
	Name           string  `gorm:"not null"`
	Color          *string
	Position       int `gorm:"not null"`
	CreatedAt      time.Time
}

func (t *GameTeam) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// GameInvitation is one user's invitation to one game.
// The composite primary key (GameID, UserID) is the invariant that makes
// invitation expansion idempotent: no matter how many paths invite the same
// user (directly, via one group, via two groups), there is exactly one row,
// and the first write wins on team assignment.
type GameInvitation struct {
	GameID      string           `gorm:"primaryKey"`
	UserID      string           `gorm:"primaryKey"`
	Game        Game             `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE"`
	User        User             `gorm:"foreignKey:UserID"`
	TeamID      string           `gorm:"not null"`
	Team        GameTeam         `gorm:"foreignKey:TeamID"`
	GroupID     *string          // Provenance: set when this row came from a group expansion
	Status      InvitationStatus `gorm:"type:invitation_status;not null;default:'pending'"`
	InvitedAt   time.Time        `gorm:"not null"`
	RespondedAt *time.Time
}

// GroupGameInvitation marks that a whole group was invited to a game.
// The expansion to individual GameInvitation rows happens at invite time;
// this row preserves the group-level fact so "games my group was invited to"
// can be answered with a join.
type GroupGameInvitation struct {
	GameID    string    `gorm:"primaryKey"`
	GroupID   string    `gorm:"primaryKey"`
	Game      Game      `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE"`
	Group     Group     `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
	InvitedAt time.Time `gorm:"not null"`
}
