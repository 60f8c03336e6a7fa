// This file handles the /groups routes — creating groups, managing membership,
// and listing the games a group has been invited to.
//
// A group is a durable roster ("Sunday FC"), not an in-game side. All group
// reads are member-scoped: a group you don't belong to is indistinguishable
// from one that doesn't exist (404), which both matches the error taxonomy
// and avoids leaking group existence to outsiders.
package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agon-app/agon/internal/middleware"
	"github.com/agon-app/agon/internal/models"
)

// GroupResponse is the full group view, including the expanded member list.
type GroupResponse struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Members []UserResponse `json:"members"`
}

// GroupListItem is the compact shape used in listings and search results.
type GroupListItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateGroupRequest is the JSON body we expect on POST /groups.
type CreateGroupRequest struct {
	Name string `json:"name"`
}

// AddGroupMembersRequest is the JSON body we expect on POST /groups/:id/members.
type AddGroupMembersRequest struct {
	UserIDs []string `json:"user_ids"`
}

// groupMembers loads the expanded member list for a group.
func groupMembers(db *gorm.DB, groupID string) ([]UserResponse, error) {
	var users []models.User
	err := db.
		Joins("JOIN group_members ON group_members.user_id = users.id").
		Where("group_members.group_id = ?", groupID).
		Order("users.username").
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	members := make([]UserResponse, 0, len(users))
	for _, u := range users {
		members = append(members, toUserResponse(u))
	}
	return members, nil
}

// userGroup fetches a group scoped to the caller's membership.
// Returns gorm.ErrRecordNotFound both for a missing group and for a group the
// caller doesn't belong to.
func userGroup(db *gorm.DB, userID, groupID string) (models.Group, error) {
	var group models.Group
	err := db.
		Joins("JOIN group_members ON group_members.group_id = groups.id").
		Where("group_members.user_id = ? AND groups.id = ?", userID, groupID).
		First(&group).Error
	return group, err
}

// CreateGroup returns a handler for POST /groups.
// Creates the group and adds the creator as its first member. Both inserts
// run in one transaction so a failed membership insert can't leave behind an
// empty, memberless group.
func CreateGroup(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals(middleware.UserIDKey).(string)

		var req CreateGroupRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
			})
		}
		if req.Name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "name is required",
			})
		}

		group := models.Group{
			Name:            req.Name,
			CreatedByUserID: userID,
		}
		txErr := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&group).Error; err != nil {
				return err
			}
			// The creator is always a member of their own group — this is
			// what makes "my groups" a single join on group_members.
			member := models.GroupMember{GroupID: group.ID, UserID: userID}
			return tx.Create(&member).Error
		})
		if txErr != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to create group",
			})
		}

		members, err := groupMembers(db, group.ID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch group members",
			})
		}

		return c.Status(fiber.StatusCreated).JSON(GroupResponse{
			ID:      group.ID,
			Name:    group.Name,
			Members: members,
		})
	}
}

// GetGroups returns a handler for GET /groups.
// Lists the groups the caller belongs to. Creators are members by
// construction, so a single membership join covers "creator or member".
func GetGroups(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals(middleware.UserIDKey).(string)

		var groups []models.Group
		err := db.
			Joins("JOIN group_members ON group_members.group_id = groups.id").
			Where("group_members.user_id = ?", userID).
			Order("groups.created_at").
			Find(&groups).Error
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch groups",
			})
		}

		response := make([]GroupListItem, 0, len(groups))
		for _, g := range groups {
			response = append(response, GroupListItem{ID: g.ID, Name: g.Name})
		}
		return c.JSON(response)
	}
}

// SearchGroups returns a handler for GET /groups/search?q=.
// Case-insensitive substring match on the group name, capped at 20 results.
// Used by the invitation UI to find rosters to invite to a game.
func SearchGroups(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := c.Query("q")
		like := "%" + q + "%"

		var groups []models.Group
		err := db.
			Where("LOWER(name) LIKE LOWER(?)", like).
			Order("name").
			Limit(20).
			Find(&groups).Error
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to search groups",
			})
		}

		response := make([]GroupListItem, 0, len(groups))
		for _, g := range groups {
			response = append(response, GroupListItem{ID: g.ID, Name: g.Name})
		}
		return c.JSON(response)
	}
}

// GetGroup returns a handler for GET /groups/:id.
// Returns the group with its expanded member list; 404 unless the caller is
// a member.
func GetGroup(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals(middleware.UserIDKey).(string)
		groupID := c.Params("id")

		group, err := userGroup(db, userID, groupID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "group not found",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch group",
			})
		}

		members, err := groupMembers(db, group.ID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch group members",
			})
		}

		return c.JSON(GroupResponse{
			ID:      group.ID,
			Name:    group.Name,
			Members: members,
		})
	}
}

// AddGroupMembers returns a handler for POST /groups/:id/members.
// Batch-inserts memberships in one transaction. Inserts are idempotent:
// a user who is already a member is skipped, not an error.
func AddGroupMembers(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals(middleware.UserIDKey).(string)
		groupID := c.Params("id")

		var req AddGroupMembersRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
			})
		}
		if len(req.UserIDs) == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "user_ids is required",
			})
		}

		if _, err := userGroup(db, userID, groupID); err != nil {
			if err == gorm.ErrRecordNotFound {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "group not found",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch group",
			})
		}

		// Every referenced user must exist — a single bad id fails the whole
		// batch before any row is written.
		if ok, err := usersExist(db, req.UserIDs); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to add members",
			})
		} else if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "user not found",
			})
		}

		txErr := db.Transaction(func(tx *gorm.DB) error {
			for _, uid := range req.UserIDs {
				member := models.GroupMember{GroupID: groupID, UserID: uid}
				err := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "group_id"}, {Name: "user_id"}},
					DoNothing: true,
				}).Create(&member).Error
				if err != nil {
					return err
				}
			}
			return nil
		})
		if txErr != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to add members",
			})
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GetGroupGames returns a handler for GET /groups/:id/games.
// Lists games this group has been invited to, via the group_game_invitations
// join. Member-scoped like every other group read.
func GetGroupGames(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals(middleware.UserIDKey).(string)
		groupID := c.Params("id")

		if _, err := userGroup(db, userID, groupID); err != nil {
			if err == gorm.ErrRecordNotFound {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "group not found",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch group",
			})
		}

		var games []models.Game
		err := db.
			Preload("Template").
			Preload("RecurringGame").
			Joins("JOIN group_game_invitations ON group_game_invitations.game_id = games.id").
			Where("group_game_invitations.group_id = ?", groupID).
			Order("games.scheduled_time DESC").
			Find(&games).Error
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch group games",
			})
		}

		response := make([]GameResponse, 0, len(games))
		for _, g := range games {
			response = append(response, toGameResponse(g))
		}
		return c.JSON(response)
	}
}

// usersExist reports whether every id in userIDs has a users row.
func usersExist(db *gorm.DB, userIDs []string) (bool, error) {
	unique := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		unique[id] = struct{}{}
	}
	ids := make([]string, 0, len(unique))
	for id := range unique {
		ids = append(ids, id)
	}

	var count int64
	if err := db.Model(&models.User{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
		return false, err
	}
	return count == int64(len(ids)), nil
}
