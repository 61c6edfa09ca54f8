package client

import (
	"context"
	"fmt"

	"tailtrail/internal/models"
)

const blockPath = "/api/v1/users/block/"

// BlockUser hides the user with id from the caller.
func (c *Client) BlockUser(ctx context.Context, id string) error {
	if err := c.PostJSON(ctx, blockPath, models.BlockRequest{BlockedID: id}, nil); err != nil {
		return fmt.Errorf("block user %s: %w", id, err)
	}
	return nil
}

// BlockedUsers lists the users the caller has blocked.
func (c *Client) BlockedUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.GetJSON(ctx, blockPath, &users); err != nil {
		return nil, fmt.Errorf("fetch blocked users: %w", err)
	}
	return users, nil
}

// UnblockUser lifts a block placed with BlockUser.
func (c *Client) UnblockUser(ctx context.Context, id string) error {
	if err := c.Delete(ctx, blockPath+id); err != nil {
		return fmt.Errorf("unblock user %s: %w", id, err)
	}
	return nil
}
