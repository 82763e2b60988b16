package changelog

import (
	"time"

	"github.com/samber/lo"
)

// 差分の対象となるプロパティ名です。
const (
	PropertyEmployeeNumber = "employeeNumber"
	PropertyName           = "name"
	PropertyEmail          = "email"
	PropertyPosition       = "position"
	PropertyDepartmentName = "departmentName"
	PropertyHireDate       = "hireDate"
	PropertyStatus         = "status"
)

const dateLayout = "2006-01-02"

// updateProperties は更新時に比較するフィールドです。部署は ID ではなく名前で比較します。
var updateProperties = []string{
	PropertyName,
	PropertyEmail,
	PropertyPosition,
	PropertyDepartmentName,
	PropertyHireDate,
	PropertyStatus,
}

// lifecycleProperties は作成・削除時に記録するフィールドです。
var lifecycleProperties = append([]string{PropertyEmployeeNumber}, updateProperties...)

// Snapshot は差分計算に用いる社員の文字列化前の状態です。
type Snapshot struct {
	EmployeeNumber string
	Name           string
	Email          string
	Position       *string
	DepartmentName string
	HireDate       *time.Time
	Status         string
}

func (s *Snapshot) value(property string) *string {
	if s == nil {
		return nil
	}
	switch property {
	case PropertyEmployeeNumber:
		return nonEmpty(s.EmployeeNumber)
	case PropertyName:
		return nonEmpty(s.Name)
	case PropertyEmail:
		return nonEmpty(s.Email)
	case PropertyPosition:
		if s.Position == nil {
			return nil
		}
		return nonEmpty(*s.Position)
	case PropertyDepartmentName:
		return nonEmpty(s.DepartmentName)
	case PropertyHireDate:
		if s.HireDate == nil {
			return nil
		}
		return lo.ToPtr(s.HireDate.UTC().Format(dateLayout))
	case PropertyStatus:
		return nonEmpty(s.Status)
	default:
		return nil
	}
}

// ComputeDiffs は before と after の差分を返します。
// before が nil なら作成、after が nil なら削除として扱い、社員番号も対象に含めます。
// 値は null 安全に文字列比較し、一致するフィールドは出力しません。
func ComputeDiffs(before, after *Snapshot) []Diff {
	properties := updateProperties
	if before == nil || after == nil {
		properties = lifecycleProperties
	}

	return lo.FilterMap(properties, func(property string, _ int) (Diff, bool) {
		b, a := before.value(property), after.value(property)
		if equalNullable(b, a) {
			return Diff{}, false
		}
		return Diff{PropertyName: property, Before: b, After: a}, true
	})
}

func equalNullable(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
