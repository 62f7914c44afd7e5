package ipld

import (
	"fmt"

	"github.com/ipld/go-ipld-prime/datamodel"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	"github.com/ipld/go-ipld-prime/node/basicnode"
)

// ToNode converts a homestar Value into a go-ipld-prime datamodel.Node,
// the representation the dagcbor/dagjson codecs operate over.
func ToNode(v Value) (datamodel.Node, error) {
	nb := basicnode.Prototype.Any.NewBuilder()
	if err := assign(nb, v); err != nil {
		return nil, err
	}
	return nb.Build(), nil
}

func assign(na datamodel.NodeAssembler, v Value) error {
	switch v.kind {
	case KindNull, KindInvalid:
		return na.AssignNull()
	case KindBool:
		return na.AssignBool(v.b)
	case KindInt:
		return na.AssignInt(v.i)
	case KindFloat:
		return na.AssignFloat(v.f)
	case KindString:
		return na.AssignString(v.s)
	case KindBytes:
		return na.AssignBytes(v.by)
	case KindLink:
		return na.AssignLink(cidlink.Link{Cid: v.link})
	case KindList:
		la, err := na.BeginList(int64(len(v.list)))
		if err != nil {
			return err
		}
		for _, item := range v.list {
			if err := assign(la.AssembleValue(), item); err != nil {
				return err
			}
		}
		return la.Finish()
	case KindMap:
		_, keys, _ := v.AsMap()
		ma, err := na.BeginMap(int64(len(keys)))
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := ma.AssembleKey().AssignString(k); err != nil {
				return err
			}
			if err := assign(ma.AssembleValue(), v.m[k]); err != nil {
				return err
			}
		}
		return ma.Finish()
	default:
		return fmt.Errorf("ipld: unknown value kind %v", v.kind)
	}
}

// FromNode converts a go-ipld-prime datamodel.Node back into a homestar Value.
func FromNode(n datamodel.Node) (Value, error) {
	switch n.Kind() {
	case datamodel.Kind_Null, datamodel.Kind_Invalid:
		return Null(), nil
	case datamodel.Kind_Bool:
		b, err := n.AsBool()
		if err != nil {
			return Value{}, err
		}
		return Bool(b), nil
	case datamodel.Kind_Int:
		i, err := n.AsInt()
		if err != nil {
			return Value{}, err
		}
		return Int(i), nil
	case datamodel.Kind_Float:
		f, err := n.AsFloat()
		if err != nil {
			return Value{}, err
		}
		return Float(f), nil
	case datamodel.Kind_String:
		s, err := n.AsString()
		if err != nil {
			return Value{}, err
		}
		return String(s), nil
	case datamodel.Kind_Bytes:
		b, err := n.AsBytes()
		if err != nil {
			return Value{}, err
		}
		return Bytes(b), nil
	case datamodel.Kind_Link:
		l, err := n.AsLink()
		if err != nil {
			return Value{}, err
		}
		cl, ok := l.(cidlink.Link)
		if !ok {
			return Value{}, fmt.Errorf("ipld: non-CID link encountered")
		}
		return Link(cl.Cid), nil
	case datamodel.Kind_List:
		items := make([]Value, 0, n.Length())
		it := n.ListIterator()
		for !it.Done() {
			_, item, err := it.Next()
			if err != nil {
				return Value{}, err
			}
			child, err := FromNode(item)
			if err != nil {
				return Value{}, err
			}
			items = append(items, child)
		}
		return List(items...), nil
	case datamodel.Kind_Map:
		keys := make([]string, 0, n.Length())
		values := make(map[string]Value, n.Length())
		it := n.MapIterator()
		for !it.Done() {
			k, val, err := it.Next()
			if err != nil {
				return Value{}, err
			}
			ks, err := k.AsString()
			if err != nil {
				return Value{}, err
			}
			child, err := FromNode(val)
			if err != nil {
				return Value{}, err
			}
			keys = append(keys, ks)
			values[ks] = child
		}
		return Map(keys, values), nil
	default:
		return Value{}, fmt.Errorf("ipld: unsupported node kind %v", n.Kind())
	}
}
