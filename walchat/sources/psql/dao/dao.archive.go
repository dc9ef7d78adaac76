package dao

import (
	"context"

	"walchat/walchat/sources/memstore"
	"walchat/walchat/sources/psql/models"

	"gorm.io/gorm"
)

// ArchiveDAO is the relational archive backend: one row per chat message.
type ArchiveDAO struct {
	DB *gorm.DB
}

func NewArchiveDAO(db *gorm.DB) *ArchiveDAO {
	return &ArchiveDAO{DB: db}
}

// ForAddress binds the DAO to one wallet address, yielding the per-store
// archive hook.
func (dao *ArchiveDAO) ForAddress(address string) memstore.Archiver {
	return &boundArchive{dao: dao, address: address}
}

type boundArchive struct {
	dao     *ArchiveDAO
	address string
}

func (b *boundArchive) StoreMessage(ctx context.Context, sessionID string, msg memstore.Message) error {
	row := models.ArchivedMessage{
		ID:          msg.ID,
		SessionID:   sessionID,
		UserAddress: b.address,
		Role:        string(msg.Role),
		Content:     msg.Content,
		Timestamp:   msg.Timestamp,
	}
	return b.dao.DB.WithContext(ctx).Create(&row).Error
}

func (b *boundArchive) LoadSessions(ctx context.Context, userID string) ([]memstore.Session, error) {
	var rows []models.ArchivedMessage
	err := b.dao.DB.WithContext(ctx).
		Where("user_address = ?", userID).
		Order("timestamp ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	bySession := make(map[string][]memstore.Message)
	var order []string
	for _, row := range rows {
		if _, seen := bySession[row.SessionID]; !seen {
			order = append(order, row.SessionID)
		}
		bySession[row.SessionID] = append(bySession[row.SessionID], memstore.Message{
			ID:        row.ID,
			Role:      memstore.Role(row.Role),
			Content:   row.Content,
			Timestamp: row.Timestamp,
		})
	}

	// order holds sessions oldest-first; reverse for newest-created first.
	sessions := make([]memstore.Session, 0, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		sessions = append(sessions, memstore.RebuildSession(id, bySession[id]))
	}
	return sessions, nil
}
