package engine

import (
	"fmt"

	"github.com/shaiso/Provisor/internal/domain"
)

// Node — узел в DAG job'ов.
type Node struct {
	// Job — определение job'а из конфига.
	Job *domain.JobDef

	// Key — логический ключ job'а.
	Key string

	// InDegree — количество входящих рёбер. Для job graph'а с одиночным
	// parent это 0 или 1, но алгоритм не полагается на это.
	InDegree int

	// Parent — родительский узел (nil для корней).
	Parent *Node

	// Children — узлы, зависящие от этого узла, в порядке объявления.
	Children []*Node
}

// DAG — граф зависимостей job'ов.
type DAG struct {
	// Nodes — все узлы графа (key → Node).
	Nodes map[string]*Node

	// RootNodes — узлы без родителя, в порядке объявления.
	RootNodes []*Node

	// Order — топологически отсортированный список узлов.
	Order []*Node
}

// BuildDAG строит DAG из конфига и вычисляет топологический порядок.
//
// Порядок детерминирован: при равных возможностях выигрывает job,
// объявленный в конфиге раньше (алгоритм Кана с очередью, засеянной
// в порядке объявления).
func BuildDAG(cfg *domain.JobsConfig) (*DAG, error) {
	dag := &DAG{
		Nodes:     make(map[string]*Node, len(cfg.Jobs)),
		RootNodes: make([]*Node, 0),
	}

	// Первый проход: создаём все узлы.
	for i := range cfg.Jobs {
		job := &cfg.Jobs[i]
		dag.Nodes[job.Key] = &Node{
			Job:      job,
			Key:      job.Key,
			Children: make([]*Node, 0),
		}
	}

	// Второй проход: связываем parent-рёбра в порядке объявления,
	// чтобы Children у каждого узла шли детерминированно.
	for i := range cfg.Jobs {
		job := &cfg.Jobs[i]
		node := dag.Nodes[job.Key]

		if job.Parent == "" {
			dag.RootNodes = append(dag.RootNodes, node)
			continue
		}

		parent, exists := dag.Nodes[job.Parent]
		if !exists {
			return nil, NewValidationError(job.Key, "parent",
				fmt.Sprintf("references unknown parent: %s", job.Parent), ErrUnknownParent)
		}
		if parent == node {
			return nil, NewValidationError(job.Key, "parent",
				"job is its own parent", ErrSelfParent)
		}

		node.Parent = parent
		node.InDegree++
		parent.Children = append(parent.Children, node)
	}

	order, err := dag.topologicalSort()
	if err != nil {
		return nil, err
	}
	dag.Order = order

	return dag, nil
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
// Возвращает ошибку, если обнаружен цикл.
func (d *DAG) topologicalSort() ([]*Node, error) {
	// Копируем inDegree, чтобы не модифицировать оригинал.
	inDegree := make(map[string]int, len(d.Nodes))
	for key, node := range d.Nodes {
		inDegree[key] = node.InDegree
	}

	queue := make([]*Node, len(d.RootNodes))
	copy(queue, d.RootNodes)

	order := make([]*Node, 0, len(d.Nodes))

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, child := range node.Children {
			inDegree[child.Key]--
			if inDegree[child.Key] == 0 {
				queue = append(queue, child)
			}
		}
	}

	// Если не все узлы обработаны — есть цикл.
	if len(order) != len(d.Nodes) {
		return nil, ErrCyclicDependency
	}

	return order, nil
}

// ReverseOrder возвращает узлы в обратном топологическом порядке.
// Используется при prune: дети удаляются раньше родителей.
func (d *DAG) ReverseOrder() []*Node {
	reversed := make([]*Node, len(d.Order))
	for i, node := range d.Order {
		reversed[len(d.Order)-1-i] = node
	}
	return reversed
}

// GetNode возвращает узел по ключу.
func (d *DAG) GetNode(key string) *Node {
	return d.Nodes[key]
}

// Size возвращает количество узлов в DAG.
func (d *DAG) Size() int {
	return len(d.Nodes)
}

// Levels группирует узлы по уровням: уровень 0 — корни, уровень N —
// job'ы, родитель которых на уровне N-1. Job'ы одного уровня независимы
// и могут выполняться параллельно (используется local runner'ом).
func (d *DAG) Levels() [][]*Node {
	levels := make([][]*Node, 0)
	depth := make(map[string]int, len(d.Nodes))

	for _, node := range d.Order {
		level := 0
		if node.Parent != nil {
			level = depth[node.Parent.Key] + 1
		}
		depth[node.Key] = level

		if level == len(levels) {
			levels = append(levels, make([]*Node, 0))
		}
		levels[level] = append(levels[level], node)
	}

	return levels
}
