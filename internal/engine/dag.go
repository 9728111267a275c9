package engine

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/kmease-ttc/Hermes-sub004/internal/domain"
)

// Node — узел в DAG.
type Node struct {
	// Service — определение сервиса из плана.
	Service domain.ServiceDefinition

	// Name — имя сервиса.
	Name string

	// Index — позиция сервиса в плане (для стабильного порядка волн).
	Index int

	// InDegree — количество входящих рёбер (зависимостей).
	InDegree int

	// DependsOn — узлы, от которых зависит этот узел.
	DependsOn []*Node

	// Dependents — узлы, которые зависят от этого узла.
	Dependents []*Node
}

// DAG — направленный ациклический граф сервисов плана.
type DAG struct {
	// Nodes — все узлы графа (name → Node).
	Nodes map[string]*Node

	// RootNodes — узлы без зависимостей (первая волна).
	RootNodes []*Node

	// Order — топологически отсортированный список узлов.
	Order []*Node
}

// BuildDAG строит DAG из RunPlan.
func BuildDAG(plan *domain.RunPlan) (*DAG, error) {
	dag := &DAG{
		Nodes:     make(map[string]*Node, len(plan.Services)),
		RootNodes: make([]*Node, 0),
	}

	// Первый проход: создаём все узлы
	for i, svc := range plan.Services {
		dag.Nodes[svc.Name] = &Node{
			Service:    svc,
			Name:       svc.Name,
			Index:      i,
			DependsOn:  make([]*Node, 0),
			Dependents: make([]*Node, 0),
		}
	}

	// Второй проход: связываем узлы по зависимостям
	for _, svc := range plan.Services {
		node := dag.Nodes[svc.Name]
		for _, dep := range svc.DependsOn {
			depNode, exists := dag.Nodes[dep]
			if !exists {
				return nil, NewValidationError(svc.Name, "depends_on",
					fmt.Sprintf("depends on unknown service: %s", dep), ErrMissingDependency)
			}
			dag.addEdge(depNode, node)
		}
	}

	dag.findRootNodes(plan)

	order, err := dag.topologicalSort()
	if err != nil {
		return nil, err
	}
	dag.Order = order

	return dag, nil
}

// addEdge добавляет ребро между узлами, игнорируя дубликаты.
func (d *DAG) addEdge(from, to *Node) {
	for _, dep := range to.DependsOn {
		if dep.Name == from.Name {
			return
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.DependsOn = append(to.DependsOn, from)
	to.InDegree++
}

// findRootNodes находит узлы без входящих рёбер в порядке плана.
func (d *DAG) findRootNodes(plan *domain.RunPlan) {
	for _, svc := range plan.Services {
		if node := d.Nodes[svc.Name]; node.InDegree == 0 {
			d.RootNodes = append(d.RootNodes, node)
		}
	}
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
// Возвращает ошибку, если обнаружен цикл.
func (d *DAG) topologicalSort() ([]*Node, error) {
	inDegree := make(map[string]int, len(d.Nodes))
	for name, node := range d.Nodes {
		inDegree[name] = node.InDegree
	}

	queue := make([]*Node, len(d.RootNodes))
	copy(queue, d.RootNodes)

	order := make([]*Node, 0, len(d.Nodes))

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, dependent := range node.Dependents {
			inDegree[dependent.Name]--
			if inDegree[dependent.Name] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	// Если не все узлы обработаны — есть цикл
	if len(order) != len(d.Nodes) {
		return nil, NewValidationError("", "depends_on",
			"cyclic dependency detected", ErrCyclicDependency)
	}

	return order, nil
}

// ReadyNodes возвращает узлы, готовые к выполнению.
//
// Узел готов, если сам он в статусе PENDING, а все его зависимости
// в статусе COMPLETED. Порядок — порядок сервисов в плане.
func (d *DAG) ReadyNodes(statuses map[string]domain.ServiceStatus) []*Node {
	ready := make([]*Node, 0)

	for _, node := range d.Order {
		if statuses[node.Name] != domain.ServiceStatusPending {
			continue
		}

		allDepsCompleted := true
		for _, dep := range node.DependsOn {
			if statuses[dep.Name] != domain.ServiceStatusCompleted {
				allDepsCompleted = false
				break
			}
		}

		if allDepsCompleted {
			ready = append(ready, node)
		}
	}

	slices.SortFunc(ready, func(a, b *Node) int { return cmp.Compare(a.Index, b.Index) })
	return ready
}

// GetNode возвращает узел по имени.
func (d *DAG) GetNode(name string) *Node {
	return d.Nodes[name]
}

// Size возвращает количество узлов в DAG.
func (d *DAG) Size() int {
	return len(d.Nodes)
}
