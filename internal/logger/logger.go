package logger

import (
	"github.com/sirupsen/logrus"
)

// Log это глобальный логгер. До Init пишет в текстовом виде с уровнем Info,
// чтобы тесты и утилиты не падали на nil.
var Log = logrus.New()

// Init инициализирует структурированный логгер.
func Init(level string) {
	Log = logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	// Используем JSON формат для production, text для development
	Log.SetFormatter(&logrus.JSONFormatter{})
}

// SetTextFormatter устанавливает текстовый формат логов (для development).
func SetTextFormatter() {
	if Log != nil {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
}

// ForGig возвращает стандартный набор полей для событий по заданию.
func ForGig(gigID interface{}, action string) *logrus.Entry {
	return Log.WithFields(logrus.Fields{
		"gig_id": gigID,
		"action": action,
	})
}

// ForSignature добавляет подпись транзакции к записи.
func ForSignature(entry *logrus.Entry, signature string) *logrus.Entry {
	return entry.WithField("signature", signature)
}
