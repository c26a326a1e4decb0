package session

import (
	"github.com/mmonsif/aeroconnect/db"
	"github.com/mmonsif/aeroconnect/mirror"
	"github.com/mmonsif/aeroconnect/models"
)

// directory resolves user references against the session's mirrored users table.
type directory struct {
	mirror *mirror.Mirror
}

func (d *directory) UserByID(id string) (models.User, bool) {
	row, ok := d.mirror.Get(models.TableUsers, id)
	if !ok {
		return models.User{}, false
	}
	return db.DecodeUser(row), true
}

func (d *directory) UserByName(name string) (models.User, bool) {
	return d.find("name", name)
}

func (d *directory) UserByStaffID(staffID string) (models.User, bool) {
	return d.find("staff_id", staffID)
}

func (d *directory) find(key, value string) (models.User, bool) {
	if value == "" {
		return models.User{}, false
	}
	for _, row := range d.mirror.Rows(models.TableUsers) {
		if row.String(key) == value {
			return db.DecodeUser(row), true
		}
	}
	return models.User{}, false
}
