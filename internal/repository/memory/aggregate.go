package memory

import (
	"sort"

	"libraryconnect.chat/internal/model"
)

// AggregateConversations groups the messages userID took part in by the other participant,
// keeps the latest message of every pair and counts what that partner sent unread.
// Rows come back newest first; equal timestamps are ordered by partner id.
func AggregateConversations(userID int64, messages []model.Message) []model.ConversationRow {
	byPartner := make(map[int64]*model.ConversationRow)

	for i := range messages {
		m := &messages[i]
		if m.SenderID != userID && m.RecipientID != userID {
			continue
		}
		partner := m.PartnerOf(userID)

		row, ok := byPartner[partner]
		if !ok {
			row = &model.ConversationRow{PartnerID: partner, LastMessage: *m}
			byPartner[partner] = row
		} else if row.LastMessage.Before(m) {
			row.LastMessage = *m
		}
		if m.RecipientID == userID && !m.Read {
			row.UnreadCount++
		}
	}

	rows := make([]model.ConversationRow, 0, len(byPartner))
	for _, row := range byPartner {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		ti, tj := rows[i].LastMessage.CreatedAt, rows[j].LastMessage.CreatedAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return rows[i].PartnerID < rows[j].PartnerID
	})
	return rows
}
