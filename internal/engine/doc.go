// Package engine — валидация и упорядочивание job graph'а.
//
// # Обзор
//
// Engine принимает разобранный конфиг (domain.JobsConfig) и отвечает
// на два вопроса: корректен ли граф и в каком порядке его применять.
// Сетевых вызовов здесь нет — провалившаяся валидация гарантированно
// не оставляет следов в workspace.
//
// # Валидация
//
// Validate проверяет обязательные поля, уникальность имён, kernel,
// resource profile, cron-выражения (robfig/cron) и parent-ссылки.
// Ошибки возвращаются как *ValidationError с ключом job'а и полем;
// базовые sentinel-ошибки доступны через errors.Is.
//
// # DAG
//
// BuildDAG строит граф parent-рёбер и выполняет топологическую
// сортировку алгоритмом Кана. Порядок детерминирован: tie-break —
// порядок объявления job'ов в конфиге. Цикл в ссылках — ошибка
// ErrCyclicDependency.
package engine
