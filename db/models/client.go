package models

import (
	"context"

	"github.com/uptrace/bun"
)

// Client : Client Model
type Client struct {
	bun.BaseModel `bun:"table:clients,alias:c"`

	ID   int64  `json:"id" bun:",pk,autoincrement"`
	Name string `json:"name" bun:",notnull"`
	Timestamps
}

func (cl *Client) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	cl.Stamp(query, Now())
	return nil
}

var _ bun.BeforeAppendModelHook = (*Client)(nil)
