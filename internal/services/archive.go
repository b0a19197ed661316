package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"teamforge-downloader/internal/common"
	"teamforge-downloader/internal/interfaces"
	"teamforge-downloader/internal/models"
)

const (
	ticketsBucket  = "tickets"
	metadataBucket = "metadata"
	lastUpdateKey  = "last_update"
)

type archive struct {
	db     *bolt.DB
	config *common.StorageConfig
}

// NewArchive opens the ticket archive database, creating it and its
// buckets when missing.
func NewArchive(config *common.StorageConfig) (interfaces.Archive, error) {
	dbDir := filepath.Dir(config.DatabasePath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bolt.Open(config.DatabasePath, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(ticketsBucket)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(metadataBucket)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &archive{
		db:     db,
		config: config,
	}, nil
}

func (a *archive) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *archive) SaveTickets(serverId string, tickets []*models.TicketRecord) error {
	return a.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(ticketsBucket))
		now := time.Now()

		for _, ticket := range tickets {
			key := []byte(fmt.Sprintf("%s:%s", serverId, ticket.Id))
			ticket.Saved = now

			data, err := json.Marshal(ticket)
			if err != nil {
				return fmt.Errorf("failed to marshal ticket %s: %w", ticket.Id, err)
			}

			if err := bucket.Put(key, data); err != nil {
				return fmt.Errorf("failed to save ticket %s: %w", ticket.Id, err)
			}
		}

		metaBucket := tx.Bucket([]byte(metadataBucket))
		key := []byte(fmt.Sprintf("%s:%s", serverId, lastUpdateKey))
		data, _ := now.MarshalBinary()
		return metaBucket.Put(key, data)
	})
}

func (a *archive) LoadTickets(serverId string) (map[string]*models.TicketRecord, error) {
	tickets := make(map[string]*models.TicketRecord)

	err := a.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(ticketsBucket))
		prefix := []byte(fmt.Sprintf("%s:", serverId))

		c := bucket.Cursor()
		for k, v := c.Seek(prefix); k != nil && len(k) >= len(prefix) && string(k[:len(prefix)]) == string(prefix); k, v = c.Next() {
			var ticket models.TicketRecord
			if err := json.Unmarshal(v, &ticket); err != nil {
				continue
			}
			tickets[ticket.Id] = &ticket
		}

		return nil
	})

	return tickets, err
}

func (a *archive) LoadAllTickets() (map[string]*models.TicketRecord, error) {
	tickets := make(map[string]*models.TicketRecord)

	err := a.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(ticketsBucket))

		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var ticket models.TicketRecord
			if err := json.Unmarshal(v, &ticket); err != nil {
				continue
			}
			tickets[string(k)] = &ticket
		}

		return nil
	})

	return tickets, err
}

func (a *archive) GetLastUpdate(serverId string) (string, error) {
	var lastUpdate time.Time

	err := a.db.View(func(tx *bolt.Tx) error {
		metaBucket := tx.Bucket([]byte(metadataBucket))
		key := []byte(fmt.Sprintf("%s:%s", serverId, lastUpdateKey))
		data := metaBucket.Get(key)

		if data == nil {
			return nil
		}

		return lastUpdate.UnmarshalBinary(data)
	})

	if err != nil {
		return "", err
	}

	if lastUpdate.IsZero() {
		return "", nil
	}

	return lastUpdate.Format("2006-01-02 15:04"), nil
}

func (a *archive) ClearAllTickets() error {
	return a.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(ticketsBucket)); err != nil {
			return fmt.Errorf("failed to clear tickets: %w", err)
		}
		_, err := tx.CreateBucket([]byte(ticketsBucket))
		return err
	})
}
