// Package provisioner — reconciliation job graph'а с CML workspace.
//
// # Обзор
//
// Provisioner берёт провалидированный конфиг и приводит workspace
// в соответствие с ним за один проход:
//
//   - Plan — сухое сравнение: какие jobs будут созданы, обновлены,
//     не тронуты или удалены, и какие именно поля разошлись.
//   - Apply — исполнение: create-or-update по имени job'а
//     в топологическом порядке, с подстановкой parent_job_id
//     из уже известных ID.
//
// Ключ reconciliation — отображаемое имя job'а. Повторный apply
// неизменённого конфига не выполняет ни одной мутации.
//
// # Обработка ошибок
//
// Ошибка API по одному job'у не прерывает проход: job помечается
// FAILED, все его потомки — SKIPPED (их не к чему привязывать),
// независимые ветки применяются. Ошибки валидации, наоборот,
// возвращаются до первого API-вызова.
//
// # Побочные подписчики
//
// События (RabbitMQ), история (Postgres) и метрики (Pushgateway)
// опциональны; их ошибки логируются и не влияют на итог apply.
package provisioner
