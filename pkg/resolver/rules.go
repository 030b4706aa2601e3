package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopkeeper-ai/shopkeeper/pkg/models"
)

// localRule answers a question from fixed shop data without the LLM.
type localRule struct {
	name   string
	answer func(ctx context.Context, r *Resolver, q models.Question) (string, bool, error)
}

// localRules are tried in order; the first that answers wins.
var localRules = []localRule{
	{"category_browsing", browseCategories},
	{"pickup_locations", listPickupLocations},
	{"delivery_policy", policyRule("delivery", "配送说明：", deliveryPhrases)},
	{"payment_methods", policyRule("payment", "支付方式：", paymentPhrases)},
}

var (
	browsePhrases = []string{
		"有什么商品", "有什么产品", "有哪些商品", "有哪些产品", "卖什么", "卖些什么",
		"都有什么", "商品分类", "产品分类", "what do you sell", "what products", "product categories",
	}
	pickupPhrases = []string{
		"自提点", "自提地址", "取货地点", "取货地址", "在哪里取", "去哪取", "门店地址",
		"pickup location", "pick up location", "where can i pick up",
	}
	deliveryPhrases = []string{
		"配送范围", "配送时间", "配送政策", "送货范围", "送货时间", "多久送到", "多久能到",
		"运费怎么算", "免运费", "delivery policy", "delivery area", "delivery time", "shipping fee",
	}
	paymentPhrases = []string{
		"付款方式", "支付方式", "怎么付款", "怎么支付", "能用微信", "可以用微信",
		"能用支付宝", "可以用支付宝", "刷卡", "payment method", "how can i pay", "how do i pay",
	}
)

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func (r *Resolver) localAnswer(ctx context.Context, q models.Question) (string, bool, error) {
	for _, rule := range localRules {
		answer, ok, err := rule.answer(ctx, r, q)
		if err != nil {
			return "", false, fmt.Errorf("local rule %s: %w", rule.name, err)
		}
		if ok {
			r.logger.Debug().Str("rule", rule.name).Msg("answered by local rule")
			return answer, true, nil
		}
	}
	return "", false, nil
}

// browseCategories lists a named category's products, or every category.
func browseCategories(ctx context.Context, r *Resolver, q models.Question) (string, bool, error) {
	categories, err := r.search.Categories(ctx)
	if err != nil {
		return "", false, err
	}

	for _, c := range categories {
		if !containsAny(q.Normalized, []string{"有哪些" + c, "有什么" + c, c + "有哪些"}) {
			continue
		}
		products, err := r.search.ProductsByCategory(ctx, c)
		if err != nil {
			return "", false, err
		}
		if len(products) == 0 {
			return "", false, nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%s类商品有：", c)
		for _, p := range products {
			fmt.Fprintf(&b, "\n- %s %s", p.Name, formatPrice(p))
		}
		return b.String(), true, nil
	}

	if !containsAny(q.Normalized, browsePhrases) || len(categories) == 0 {
		return "", false, nil
	}
	parts := make([]string, 0, len(categories))
	for _, c := range categories {
		products, err := r.search.ProductsByCategory(ctx, c)
		if err != nil {
			return "", false, err
		}
		parts = append(parts, c+"（"+sampleNames(products, 3)+"）")
	}
	return "我们目前有这些商品分类：" + strings.Join(parts, "、") + "。想了解哪一类可以直接问我。", true, nil
}

func sampleNames(products []models.Product, n int) string {
	names := make([]string, 0, n)
	for _, p := range products[:min(len(products), n)] {
		names = append(names, p.Name)
	}
	s := strings.Join(names, "、")
	if len(products) > n {
		s += "等"
	}
	return s
}

func listPickupLocations(ctx context.Context, r *Resolver, q models.Question) (string, bool, error) {
	if r.texts == nil || !containsAny(q.Normalized, pickupPhrases) {
		return "", false, nil
	}
	locations, err := r.texts.PickupLocations(ctx)
	if err != nil || len(locations) == 0 {
		return "", false, err
	}

	var b strings.Builder
	b.WriteString("可以到以下自提点取货：")
	for _, l := range locations {
		fmt.Fprintf(&b, "\n- %s：%s", l.Name, l.Address)
		if l.Hours != "" {
			fmt.Fprintf(&b, "（%s）", l.Hours)
		}
	}
	return b.String(), true, nil
}

// policyRule answers with the text of a policy section when the question
// uses one of phrases.
func policyRule(sectionID, prefix string, phrases []string) func(context.Context, *Resolver, models.Question) (string, bool, error) {
	return func(ctx context.Context, r *Resolver, q models.Question) (string, bool, error) {
		if r.texts == nil || !containsAny(q.Normalized, phrases) {
			return "", false, nil
		}
		text, ok, err := r.texts.PolicyText(ctx, sectionID)
		if err != nil || !ok || strings.TrimSpace(text) == "" {
			return "", false, err
		}
		return prefix + text, true, nil
	}
}
