package intent

import (
	"strings"

	"github.com/shopkeeper-ai/shopkeeper/pkg/textproc"
)

// Category is a coarse label for what a customer is asking about.
type Category string

const (
	Price     Category = "price"
	Origin    Category = "origin"
	Nutrition Category = "nutrition"
	Taste     Category = "taste"
	Storage   Category = "storage"
	Cooking   Category = "cooking"
	Delivery  Category = "delivery"
	Payment   Category = "payment"
	Pickup    Category = "pickup"
	Return    Category = "return"
	Policy    Category = "policy"
	Greeting  Category = "greeting"
	General   Category = "general"
)

// Rule maps a category to the lower-case phrases that select it.
type Rule struct {
	Category Category
	Phrases  []string
}

// DefaultTable is consulted top to bottom; the first rule with a matching
// phrase wins, so a question mentioning both price and delivery is a price
// question. Greeting comes last so small talk never shadows a domain intent.
var DefaultTable = []Rule{
	{Price, []string{"价格", "多少钱", "价钱", "几块", "几元", "单价", "便宜", "优惠", "折扣", "打折", "price", "cost", "how much", "cheap", "discount"}},
	{Origin, []string{"产地", "哪里产", "哪儿产", "原产", "进口", "来自哪", "哪里的", "origin", "where is it from", "where are they from", "imported", "grown in"}},
	{Nutrition, []string{"营养", "维生素", "热量", "卡路里", "蛋白质", "膳食纤维", "nutrition", "vitamin", "calorie", "protein"}},
	{Taste, []string{"口感", "味道", "好吃", "甜不甜", "酸不酸", "脆不脆", "taste", "flavor", "flavour", "juicy"}},
	{Storage, []string{"保存", "储存", "保鲜", "冷藏", "冷冻", "放多久", "保质期", "storage", "how to store", "shelf life", "refrigerat", "fridge"}},
	{Cooking, []string{"做法", "怎么做", "烹饪", "怎么吃", "食谱", "菜谱", "cook", "recipe"}},
	{Delivery, []string{"配送", "送货", "快递", "运费", "送到", "多久到", "几天到", "delivery", "deliver", "shipping"}},
	{Payment, []string{"付款", "支付", "微信", "支付宝", "刷卡", "现金", "payment", "pay by", "pay with", "credit card", "cash"}},
	{Pickup, []string{"自提", "取货", "提货", "自取", "pickup", "pick up", "pick-up", "collect my order"}},
	{Return, []string{"退货", "退款", "换货", "售后", "坏了", "refund", "return", "exchange"}},
	{Policy, []string{"政策", "规定", "规则", "条款", "会员", "积分", "policy", "terms", "membership"}},
	{Greeting, []string{"你好", "您好", "在吗", "在不在", "早上好", "晚上好", "hello", "good morning", "good evening"}},
}

// Classifier assigns a Category to a question using an ordered phrase table.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	table []Rule
}

// NewClassifier returns a Classifier over DefaultTable.
func NewClassifier() *Classifier {
	return NewClassifierWithTable(DefaultTable)
}

// NewClassifierWithTable returns a Classifier over a custom ordered table.
// Phrases are lower-cased on the way in.
func NewClassifierWithTable(table []Rule) *Classifier {
	rules := make([]Rule, len(table))
	for i, r := range table {
		phrases := make([]string, 0, len(r.Phrases))
		for _, p := range r.Phrases {
			if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
				phrases = append(phrases, p)
			}
		}
		rules[i] = Rule{Category: r.Category, Phrases: phrases}
	}
	return &Classifier{table: rules}
}

// Classify returns the first category whose phrase occurs in the normalized question.
func (c *Classifier) Classify(question string) Category {
	q := textproc.Normalize(question)
	if q == "" {
		return General
	}
	for _, rule := range c.table {
		for _, phrase := range rule.Phrases {
			if strings.Contains(q, phrase) {
				return rule.Category
			}
		}
	}
	return General
}

// Table returns a copy of the classifier's rules in evaluation order.
func (c *Classifier) Table() []Rule {
	out := make([]Rule, len(c.table))
	for i, r := range c.table {
		out[i] = Rule{Category: r.Category, Phrases: append([]string(nil), r.Phrases...)}
	}
	return out
}
