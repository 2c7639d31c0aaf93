package iocli

import "io"

//go:generate moq -out io_mock.go . IO

// IO ввод-вывод CLI. Команды пишут результат через IO, а не в os.Stdout,
// чтобы вывод можно было проверить в тестах.
type IO interface {
	io.Writer
	Println(a ...any)
	Printf(format string, a ...any)
	ReadInput(prompt string) (string, error)
	// ReadSecret читает значение без эха, если ввод идет с терминала
	ReadSecret(prompt string) (string, error)
}
