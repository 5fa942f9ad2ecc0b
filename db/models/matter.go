package models

import (
	"context"

	"github.com/uptrace/bun"
)

// Matter : Matter Model. Overlap rules are evaluated per matter.
type Matter struct {
	bun.BaseModel `bun:"table:matters,alias:m"`

	ID       int64   `json:"id" bun:",pk,autoincrement"`
	ClientID int64   `json:"client_id" bun:",notnull"`
	Client   *Client `json:"-" bun:"rel:belongs-to,join:client_id=id"`
	Name     string  `json:"name" bun:",notnull"`
	Status   string  `json:"status" bun:",notnull,default:'open'"`
	Timestamps
}

func (m *Matter) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	m.Stamp(query, Now())
	return nil
}

var _ bun.BeforeAppendModelHook = (*Matter)(nil)
