package api

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string       `json:"error"`             // описание ошибки
	Message string       `json:"message,omitempty"` // дополнительное сообщение
	Details []FieldError `json:"details,omitempty"` // ошибки валидации по полям
}

// FieldError ошибка валидации одного поля
type FieldError struct {
	Field   string `json:"field"`           // путь к полю, например changes[0].data.id
	Tag     string `json:"tag"`             // нарушенное правило
	Param   string `json:"param,omitempty"` // параметр правила
	Message string `json:"message"`         // человекочитаемое описание
}
