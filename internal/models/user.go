// models содержит доменные сущности сервиса пользователей.
// Эти типы используются слоями бизнес-логики, хранилища и транспорта.
package models

// User — внутренняя доменная модель профиля пользователя.
// ID назначается хранилищем при создании и дальше не меняется.
type User struct {
	ID        int64
	Name      string
	Age       int
	Gender    string
	Email     string
	City      string
	Interests []string
}

// Clone возвращает копию без общих срезов.
func (u User) Clone() User {
	if u.Interests != nil {
		u.Interests = append([]string(nil), u.Interests...)
	}

	return u
}
