// This file handles the /games routes — creating games (one-off or recurring),
// expanding invitations, listing, detail views, and invitation responses.
//
// --- How game creation works ---
// Every game is backed by a GameTemplate holding the details that don't change
// between occurrences. Creation runs in ONE transaction:
//
//  1. Insert the template, its template teams (1 or 2), and its template
//     invitations (direct users and/or groups per team).
//  2. Materialize concrete Game rows:
//     - one-off: a single instance at the requested time;
//     - recurring: also insert a RecurringGame (cron + date range), then
//       generate instances for the upcoming window (30 days ahead, max 10)
//       and record the high-water mark for the external batch job to
//       continue from.
//  3. Each instance copies the template teams and expands the template
//     invitations: direct users get a GameInvitation; groups get a
//     GroupGameInvitation plus one GameInvitation per member.
//
// Expansion is idempotent. GameInvitation's composite primary key
// (game_id, user_id) plus ON CONFLICT DO NOTHING guarantees exactly one row
// per user per game no matter how many paths invited them, and the first
// write wins on team assignment.
//
// A single malformed id anywhere fails the whole transaction — no partial
// games, teams, or invitation sets ever persist.
package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agon-app/agon/internal/middleware"
	"github.com/agon-app/agon/internal/models"
	"github.com/agon-app/agon/internal/schedule"
	"github.com/agon-app/agon/internal/ws"
)

// LocationPayload is the lat/long (+ optional venue name) shape used in both
// requests and responses.
type LocationPayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      *string `json:"name"`
}

// SchedulePayload is the discriminated schedule union:
//
//	{"type": "one_off", "scheduled_time": "2025-06-01T18:00:00Z"}
//	{"type": "recurring", "cron_schedule": "0 18 * * SUN",
//	 "start_date": "2025-06-01", "end_date": "2025-08-31"}
//
// Responses for recurring instances additionally carry occurrence_date — the
// cron occurrence this particular instance was generated for.
type SchedulePayload struct {
	Type           string  `json:"type"`
	ScheduledTime  *string `json:"scheduled_time,omitempty"`
	CronSchedule   *string `json:"cron_schedule,omitempty"`
	StartDate      *string `json:"start_date,omitempty"`
	EndDate        *string `json:"end_date,omitempty"`
	OccurrenceDate *string `json:"occurrence_date,omitempty"`
}

const (
	scheduleTypeOneOff    = "one_off"
	scheduleTypeRecurring = "recurring"
)

// CreateGameTeamRequest defines one side of the game plus who to invite to it.
type CreateGameTeamRequest struct {
	Name            string   `json:"name"`
	Color           *string  `json:"color"`
	InvitedUserIDs  []string `json:"invited_user_ids"`
	InvitedGroupIDs []string `json:"invited_group_ids"`
}

// CreateGameRequest is the JSON body we expect on POST /games.
type CreateGameRequest struct {
	Title           string                  `json:"title"`
	GameType        string                  `json:"game_type"`
	Location        LocationPayload         `json:"location"`
	DurationMinutes int                     `json:"duration_minutes"`
	Teams           []CreateGameTeamRequest `json:"teams"`
	Schedule        SchedulePayload         `json:"schedule"`
}

// GameResponse is the public shape of a game occurrence.
type GameResponse struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	GameType        string          `json:"game_type"`
	Location        LocationPayload `json:"location"`
	ScheduledTime   string          `json:"scheduled_time"`
	DurationMinutes int             `json:"duration_minutes"`
	CreatedByUserID string          `json:"created_by_user_id"`
	CreatedAt       string          `json:"created_at"`
	Status          string          `json:"status"`
	Schedule        SchedulePayload `json:"schedule"`
}

// GameTeamResponse is one side of a game with the users assigned to it.
type GameTeamResponse struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Color    *string        `json:"color"`
	Position int            `json:"position"`
	Members  []UserResponse `json:"members"`
}

// GameInvitationResponse is one user's invitation state for a game.
type GameInvitationResponse struct {
	GameID      string  `json:"game_id"`
	UserID      string  `json:"user_id"`
	TeamID      string  `json:"team_id"`
	GroupID     *string `json:"group_id"`
	Status      string  `json:"status"`
	InvitedAt   string  `json:"invited_at"`
	RespondedAt *string `json:"responded_at"`
}

// GameInvitationWithUser pairs an invitation with a summary of its invitee.
type GameInvitationWithUser struct {
	User       UserResponse           `json:"user"`
	Invitation GameInvitationResponse `json:"invitation"`
}

// GameDetailResponse is the full single-game view.
type GameDetailResponse struct {
	Game        GameResponse             `json:"game"`
	Teams       []GameTeamResponse       `json:"teams"`
	Invitations []GameInvitationWithUser `json:"invitations"`
}

// AddGameInvitationsRequest is the JSON body for POST /games/:game_id/invitations.
type AddGameInvitationsRequest struct {
	UserIDs []string `json:"user_ids"`
	TeamID  string   `json:"team_id"`
}

// RespondToInvitationRequest is the JSON body for
// PUT /games/:game_id/invitations/:user_id.
type RespondToInvitationRequest struct {
	Response string `json:"response"` // "accepted" or "declined"
}

// httpError carries a status code through a transaction callback so the
// handler can surface a typed failure instead of a blanket 500.
type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string { return e.message }

// formatOptionalDate converts a *time.Time to a *string in "2006-01-02" format.
// Returns nil if the input is nil (preserving the nullable property in the JSON response).
func formatOptionalDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format("2006-01-02")
	return &s
}

// parseOptionalDate parses an optional date string ("YYYY-MM-DD") into a *time.Time.
// Returns nil if the input string pointer is nil or empty.
// Returns an error if the string is non-empty but not a valid date.
func parseOptionalDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

// dateOf truncates a time to its UTC calendar date.
func dateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// toGameResponse flattens an instance and its preloaded Template (and
// RecurringGame, when present) into the public shape. Callers must have used
// Preload("Template") and Preload("RecurringGame").
func toGameResponse(g models.Game) GameResponse {
	sched := SchedulePayload{Type: scheduleTypeOneOff}
	sched.ScheduledTime = formatOptionalTime(&g.ScheduledTime)
	if g.RecurringGame != nil {
		start := g.RecurringGame.StartDate
		sched = SchedulePayload{
			Type:           scheduleTypeRecurring,
			CronSchedule:   &g.RecurringGame.CronSchedule,
			StartDate:      formatOptionalDate(&start),
			EndDate:        formatOptionalDate(g.RecurringGame.EndDate),
			OccurrenceDate: formatOptionalDate(g.OccurrenceDate),
		}
	}

	return GameResponse{
		ID:       g.ID,
		Title:    g.Template.Title,
		GameType: string(g.Template.GameType),
		Location: LocationPayload{
			Latitude:  g.Template.LocationLatitude,
			Longitude: g.Template.LocationLongitude,
			Name:      g.Template.LocationName,
		},
		ScheduledTime:   g.ScheduledTime.UTC().Format(time.RFC3339),
		DurationMinutes: g.Template.DurationMinutes,
		CreatedByUserID: g.Template.CreatedByUserID,
		CreatedAt:       g.CreatedAt.UTC().Format(time.RFC3339),
		Status:          string(g.Status),
		Schedule:        sched,
	}
}

func toInvitationResponse(inv models.GameInvitation) GameInvitationResponse {
	return GameInvitationResponse{
		GameID:      inv.GameID,
		UserID:      inv.UserID,
		TeamID:      inv.TeamID,
		GroupID:     inv.GroupID,
		Status:      string(inv.Status),
		InvitedAt:   inv.InvitedAt.UTC().Format(time.RFC3339),
		RespondedAt: formatOptionalTime(inv.RespondedAt),
	}
}

// CreateGame returns a handler for POST /games.
// Validates the input, then runs the whole template-plus-materialization
// flow described at the top of this file in a single transaction.
// Responds 201 with the created game (the first occurrence, for recurring
// series).
func CreateGame(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals(middleware.UserIDKey).(string)

		var req CreateGameRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
			})
		}

		if req.Title == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "title is required",
			})
		}
		if !models.ValidGameType(req.GameType) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "unknown game_type",
			})
		}
		if req.DurationMinutes <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "duration_minutes must be positive",
			})
		}
		// A game is one side having a kick-about or two sides playing a match —
		// anything else is malformed.
		if len(req.Teams) < 1 || len(req.Teams) > 2 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "a game requires 1 or 2 teams",
			})
		}
		for _, team := range req.Teams {
			if team.Name == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "every team requires a name",
				})
			}
		}

		// Validate the schedule union up front so nothing is written for a
		// malformed schedule.
		var (
			scheduledTime time.Time
			startDate     time.Time
			endDate       *time.Time
		)
		switch req.Schedule.Type {
		case scheduleTypeOneOff:
			if req.Schedule.ScheduledTime == nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "scheduled_time is required for one_off games",
				})
			}
			t, err := time.Parse(time.RFC3339, *req.Schedule.ScheduledTime)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "scheduled_time must be RFC 3339",
				})
			}
			scheduledTime = t
		case scheduleTypeRecurring:
			if req.Schedule.CronSchedule == nil || *req.Schedule.CronSchedule == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "cron_schedule is required for recurring games",
				})
			}
			if _, err := schedule.Parse(*req.Schedule.CronSchedule); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid cron_schedule",
				})
			}
			start, err := parseOptionalDate(req.Schedule.StartDate)
			if err != nil || start == nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "start_date must be in YYYY-MM-DD format",
				})
			}
			startDate = *start
			endDate, err = parseOptionalDate(req.Schedule.EndDate)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "end_date must be in YYYY-MM-DD format",
				})
			}
			if endDate != nil && endDate.Before(startDate) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "end_date must not be before start_date",
				})
			}
		default:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "schedule.type must be 'one_off' or 'recurring'",
			})
		}

		// Every referenced user and group must exist before we write anything.
		var allUserIDs, allGroupIDs []string
		for _, team := range req.Teams {
			allUserIDs = append(allUserIDs, team.InvitedUserIDs...)
			allGroupIDs = append(allGroupIDs, team.InvitedGroupIDs...)
		}
		if len(allUserIDs) > 0 {
			if ok, err := usersExist(db, allUserIDs); err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "failed to create game",
				})
			} else if !ok {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "invited user not found",
				})
			}
		}
		if len(allGroupIDs) > 0 {
			if ok, err := groupsExist(db, allGroupIDs); err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "failed to create game",
				})
			} else if !ok {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "invited group not found",
				})
			}
		}

		var firstGameID string
		txErr := db.Transaction(func(tx *gorm.DB) error {
			template := models.GameTemplate{
				Title:             req.Title,
				GameType:          models.GameType(req.GameType),
				LocationLatitude:  req.Location.Latitude,
				LocationLongitude: req.Location.Longitude,
				LocationName:      req.Location.Name,
				DurationMinutes:   req.DurationMinutes,
				CreatedByUserID:   userID,
			}
			if err := tx.Create(&template).Error; err != nil {
				return err
			}

			for i, teamReq := range req.Teams {
				team := models.GameTemplateTeam{
					TemplateID: template.ID,
					Name:       teamReq.Name,
					Color:      teamReq.Color,
					Position:   i + 1,
				}
				if err := tx.Create(&team).Error; err != nil {
					return err
				}

				for _, uid := range teamReq.InvitedUserIDs {
					uid := uid
					inv := models.GameTemplateInvitation{
						TemplateID: template.ID,
						UserID:     &uid,
						TeamID:     team.ID,
					}
					if err := tx.Create(&inv).Error; err != nil {
						return err
					}
				}
				for _, gid := range teamReq.InvitedGroupIDs {
					gid := gid
					inv := models.GameTemplateInvitation{
						TemplateID: template.ID,
						GroupID:    &gid,
						TeamID:     team.ID,
					}
					if err := tx.Create(&inv).Error; err != nil {
						return err
					}
				}
			}

			if req.Schedule.Type == scheduleTypeOneOff {
				gameID, err := materializeGame(tx, template.ID, scheduledTime, nil, nil)
				if err != nil {
					return err
				}
				firstGameID = gameID
				return nil
			}

			// Recurring: persist the series, then generate the initial window.
			recurring := models.RecurringGame{
				TemplateID:   template.ID,
				CronSchedule: *req.Schedule.CronSchedule,
				StartDate:    startDate,
				EndDate:      endDate,
				IsActive:     true,
			}
			if err := tx.Create(&recurring).Error; err != nil {
				return err
			}

			from, until := schedule.Window(startDate, endDate, nil, time.Now())
			occurrences, err := schedule.Occurrences(recurring.CronSchedule, from, until, schedule.MaxPerBatch)
			if err != nil {
				return err
			}
			if len(occurrences) == 0 {
				return &httpError{
					status:  fiber.StatusBadRequest,
					message: "cron_schedule yields no occurrences in the date range",
				}
			}

			for _, occ := range occurrences {
				occDate := dateOf(occ)
				gameID, err := materializeGame(tx, template.ID, occ, &recurring.ID, &occDate)
				if err != nil {
					return err
				}
				if firstGameID == "" {
					firstGameID = gameID
				}
			}

			// High-water mark for the external materialization job.
			last := dateOf(occurrences[len(occurrences)-1])
			return tx.Model(&recurring).Update("last_generated_date", last).Error
		})
		if txErr != nil {
			var he *httpError
			if errors.As(txErr, &he) {
				return c.Status(he.status).JSON(fiber.Map{"error": he.message})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to create game",
			})
		}

		var game models.Game
		err := db.Preload("Template").Preload("RecurringGame").
			First(&game, "id = ?", firstGameID).Error
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch created game",
			})
		}

		return c.Status(fiber.StatusCreated).JSON(toGameResponse(game))
	}
}

// materializeGame creates one Game instance from a template inside an open
// transaction: the game row itself, a GameTeam per template team, and the
// expanded invitation set. Returns the new game's id.
func materializeGame(tx *gorm.DB, templateID string, scheduledTime time.Time, recurringGameID *string, occurrenceDate *time.Time) (string, error) {
	now := time.Now().UTC()

	game := models.Game{
		TemplateID:      templateID,
		RecurringGameID: recurringGameID,
		ScheduledTime:   scheduledTime.UTC(),
		OccurrenceDate:  occurrenceDate,
		Status:          models.GameStatusScheduled,
	}
	if err := tx.Create(&game).Error; err != nil {
		return "", err
	}

	// Copy template teams to this instance, remembering which game team each
	// template team maps to so invitations land on the right side.
	var templateTeams []models.GameTemplateTeam
	if err := tx.Where("template_id = ?", templateID).Order("position").Find(&templateTeams).Error; err != nil {
		return "", err
	}

	teamIDs := make(map[string]string, len(templateTeams))
	for _, tt := range templateTeams {
		tt := tt
		team := models.GameTeam{
			GameID:         game.ID,
			TemplateTeamID: &tt.ID,
			Name:           tt.Name,
			Color:          tt.Color,
			Position:       tt.Position,
		}
		if err := tx.Create(&team).Error; err != nil {
			return "", err
		}
		teamIDs[tt.ID] = team.ID
	}

	// Expand template invitations in insertion order — with DO NOTHING on the
	// (game_id, user_id) key, earlier invitations win team assignment.
	var templateInvitations []models.GameTemplateInvitation
	if err := tx.Where("template_id = ?", templateID).Order("created_at").Find(&templateInvitations).Error; err != nil {
		return "", err
	}

	for _, tinv := range templateInvitations {
		teamID, ok := teamIDs[tinv.TeamID]
		if !ok {
			return "", errors.New("template team mapping not found")
		}

		switch {
		case tinv.UserID != nil:
			if err := insertInvitation(tx, game.ID, *tinv.UserID, teamID, nil, now); err != nil {
				return "", err
			}

		case tinv.GroupID != nil:
			ggi := models.GroupGameInvitation{
				GameID:    game.ID,
				GroupID:   *tinv.GroupID,
				InvitedAt: now,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "game_id"}, {Name: "group_id"}},
				DoNothing: true,
			}).Create(&ggi).Error
			if err != nil {
				return "", err
			}

			var members []models.GroupMember
			if err := tx.Where("group_id = ?", *tinv.GroupID).Find(&members).Error; err != nil {
				return "", err
			}
			for _, m := range members {
				if err := insertInvitation(tx, game.ID, m.UserID, teamID, tinv.GroupID, now); err != nil {
					return "", err
				}
			}
		}
	}

	return game.ID, nil
}

// insertInvitation writes one pending GameInvitation, silently skipping the
// insert when a row for (game, user) already exists. This single statement is
// what makes the whole expansion idempotent and first-write-wins.
func insertInvitation(tx *gorm.DB, gameID, userID, teamID string, groupID *string, invitedAt time.Time) error {
	inv := models.GameInvitation{
		GameID:    gameID,
		UserID:    userID,
		TeamID:    teamID,
		GroupID:   groupID,
		Status:    models.InvitationStatusPending,
		InvitedAt: invitedAt,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "game_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&inv).Error
}

// GetGames returns a handler for GET /games.
// Lists games the caller created or was invited to, newest first.
func GetGames(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals(middleware.UserIDKey).(string)

		var games []models.Game
		err := db.
			Preload("Template").
			Preload("RecurringGame").
			Joins("JOIN game_templates ON game_templates.id = games.template_id").
			Joins("LEFT JOIN game_invitations ON game_invitations.game_id = games.id").
			Where("game_templates.created_by_user_id = ? OR game_invitations.user_id = ?", userID, userID).
			Group("games.id").
			Order("games.scheduled_time DESC").
			Find(&games).Error
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch games",
			})
		}

		response := make([]GameResponse, 0, len(games))
		for _, g := range games {
			response = append(response, toGameResponse(g))
		}
		return c.JSON(response)
	}
}

// GetGame returns a handler for GET /games/:id.
// The full view: the game, its teams with their assigned members, and the
// complete invitation list with embedded user summaries.
func GetGame(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		gameID := c.Params("id")

		var game models.Game
		err := db.Preload("Template").Preload("RecurringGame").
			First(&game, "id = ?", gameID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "game not found",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch game",
			})
		}

		var teams []models.GameTeam
		if err := db.Where("game_id = ?", gameID).Order("position").Find(&teams).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch game teams",
			})
		}

		var invitations []models.GameInvitation
		err = db.Preload("User").
			Where("game_id = ?", gameID).
			Order("invited_at").
			Find(&invitations).Error
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch game invitations",
			})
		}

		teamResponses := make([]GameTeamResponse, 0, len(teams))
		for _, team := range teams {
			members := make([]UserResponse, 0)
			for _, inv := range invitations {
				if inv.TeamID == team.ID {
					members = append(members, toUserResponse(inv.User))
				}
			}
			teamResponses = append(teamResponses, GameTeamResponse{
				ID:       team.ID,
				Name:     team.Name,
				Color:    team.Color,
				Position: team.Position,
				Members:  members,
			})
		}

		invitationResponses := make([]GameInvitationWithUser, 0, len(invitations))
		for _, inv := range invitations {
			invitationResponses = append(invitationResponses, GameInvitationWithUser{
				User:       toUserResponse(inv.User),
				Invitation: toInvitationResponse(inv),
			})
		}

		return c.JSON(GameDetailResponse{
			Game:        toGameResponse(game),
			Teams:       teamResponses,
			Invitations: invitationResponses,
		})
	}
}

// AddGameInvitations returns a handler for POST /games/:game_id/invitations.
// Direct (non-group) invites to an existing game, deduplicated against
// whoever is already invited, all in one transaction.
func AddGameInvitations(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		gameID := c.Params("game_id")

		var req AddGameInvitationsRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
			})
		}
		if len(req.UserIDs) == 0 || req.TeamID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "user_ids and team_id are required",
			})
		}

		var game models.Game
		if err := db.First(&game, "id = ?", gameID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "game not found",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch game",
			})
		}

		// The target team must be one of THIS game's sides.
		var teamCount int64
		err := db.Model(&models.GameTeam{}).
			Where("id = ? AND game_id = ?", req.TeamID, gameID).
			Count(&teamCount).Error
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to add invitations",
			})
		}
		if teamCount == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "team does not belong to this game",
			})
		}

		if ok, err := usersExist(db, req.UserIDs); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to add invitations",
			})
		} else if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "user not found",
			})
		}

		now := time.Now().UTC()
		txErr := db.Transaction(func(tx *gorm.DB) error {
			for _, uid := range req.UserIDs {
				if err := insertInvitation(tx, gameID, uid, req.TeamID, nil, now); err != nil {
					return err
				}
			}
			return nil
		})
		if txErr != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to add invitations",
			})
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}

// RespondToInvitation returns a handler for
// PUT /games/:game_id/invitations/:user_id.
// The responding identity always comes from the token — the path's user_id
// must match it, so nobody can answer an invitation on someone else's behalf.
// Re-responding is allowed (accepted ↔ declined) and idempotent; responded_at
// is stamped on every response. A user with no invitation row gets 404.
// Watchers on the game's live socket are notified of each response.
func RespondToInvitation(db *gorm.DB, hub *ws.Hub) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals(middleware.UserIDKey).(string)
		gameID := c.Params("game_id")
		if c.Params("user_id") != userID {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "cannot respond to another user's invitation",
			})
		}

		var req RespondToInvitationRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
			})
		}

		var status models.InvitationStatus
		switch req.Response {
		case string(models.InvitationStatusAccepted):
			status = models.InvitationStatusAccepted
		case string(models.InvitationStatusDeclined):
			status = models.InvitationStatusDeclined
		default:
			// "pending" is intentionally rejected: a response never reverts.
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "response must be 'accepted' or 'declined'",
			})
		}

		now := time.Now().UTC()
		result := db.Model(&models.GameInvitation{}).
			Where("game_id = ? AND user_id = ?", gameID, userID).
			Updates(map[string]interface{}{
				"status":       status,
				"responded_at": now,
			})
		if result.Error != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to update invitation",
			})
		}
		if result.RowsAffected == 0 {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "invitation not found",
			})
		}

		var inv models.GameInvitation
		err := db.Where("game_id = ? AND user_id = ?", gameID, userID).First(&inv).Error
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch invitation",
			})
		}

		if hub != nil {
			hub.BroadcastInvitation(ws.InvitationEvent{
				GameID:      gameID,
				UserID:      userID,
				Status:      string(status),
				RespondedAt: now.Format(time.RFC3339),
			})
		}

		return c.JSON(toInvitationResponse(inv))
	}
}

// groupsExist reports whether every id in groupIDs has a groups row.
func groupsExist(db *gorm.DB, groupIDs []string) (bool, error) {
	unique := make(map[string]struct{}, len(groupIDs))
	for _, id := range groupIDs {
		unique[id] = struct{}{}
	}
	ids := make([]string, 0, len(unique))
	for id := range unique {
		ids = append(ids, id)
	}

	var count int64
	if err := db.Model(&models.Group{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
		return false, err
	}
	return count == int64(len(ids)), nil
}
