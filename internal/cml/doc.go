// Package cml — HTTP-клиент для CML Jobs API (v2).
//
// Клиент покрывает только то, что нужно provisor'у: list/get/create/
// update/delete jobs и ручной запуск run'а. Авторизация — API key
// в заголовке Authorization: Bearer.
//
// Transient-ошибки (сетевые сбои, 429, 5xx) повторяются с экспоненциальной
// задержкой через retry-go; ошибки клиента (4xx) возвращаются сразу
// как *APIError. 404 дополнительно отображается на ErrNotFound.
package cml
