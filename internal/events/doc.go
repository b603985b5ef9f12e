// Package events — публикация событий провижининга в RabbitMQ.
//
// Подключение опционально: если AMQP_URL не задан, provisor работает
// без событий. Когда задан — каждый созданный/обновлённый/удалённый
// job публикуется в exchange provisor.jobs, а итог apply —
// в provisor.applies. Потребители — внешняя автоматизация
// (нотификации, аудит), provisor сам ничего не потребляет.
package events
