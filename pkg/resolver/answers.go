package resolver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopkeeper-ai/shopkeeper/pkg/intent"
	"github.com/shopkeeper-ai/shopkeeper/pkg/models"
)

const apologyAnswer = "抱歉，系统暂时出了点问题，请稍后再试或联系店员。"

const busyNote = "（智能助手暂时繁忙，以上为店内资料，如需更多帮助请联系店员。）"

var noInformation = map[intent.Category]string{
	intent.Price:     "抱歉，暂时没有找到这件商品的价格信息，可以换个商品名称试试，或联系店员确认。",
	intent.Origin:    "抱歉，暂时没有找到这件商品的产地信息，可以联系店员确认。",
	intent.Nutrition: "抱歉，暂时没有这件商品的营养信息。",
	intent.Taste:     "抱歉，暂时没有找到这件商品的口感介绍，欢迎到店试吃。",
	intent.Storage:   "抱歉，暂时没有这件商品的保存说明，一般生鲜建议冷藏并尽快食用。",
	intent.Cooking:   "抱歉，暂时没有这件商品的做法推荐。",
	intent.Delivery:  "抱歉，暂时没有找到相关的配送信息，可以联系店员确认。",
	intent.Payment:   "抱歉，暂时没有找到相关的支付信息，可以联系店员确认。",
	intent.Pickup:    "抱歉，暂时没有找到自提相关信息，可以联系店员确认。",
	intent.Return:    "抱歉，暂时没有找到售后相关信息，可以联系店员处理。",
	intent.Policy:    "抱歉，暂时没有找到相关政策说明，可以联系店员确认。",
	intent.Greeting:  "您好！我是小店的智能助手，可以为您介绍商品价格、产地、口感，以及配送和售后政策。",
	intent.General:   "抱歉，我暂时没有找到相关信息。您可以问问商品价格、产地、配送或售后政策。",
}

func noInformationAnswer(c intent.Category) string {
	if s, ok := noInformation[c]; ok {
		return s
	}
	return noInformation[intent.General]
}

func formatPrice(p models.Product) string {
	price := strconv.FormatFloat(p.Price, 'f', -1, 64) + "元"
	if p.Unit != "" {
		price += "/" + p.Unit
	}
	return price
}

func describeProduct(p models.Product) string {
	parts := []string{formatPrice(p)}
	if p.Category != "" {
		parts = append(parts, "分类："+p.Category)
	}
	if p.Origin != "" {
		parts = append(parts, "产地："+p.Origin)
	}
	if p.Taste != "" {
		parts = append(parts, "口感："+p.Taste)
	}
	if p.Description != "" {
		parts = append(parts, p.Description)
	}
	return p.Name + " | " + strings.Join(parts, " | ")
}

// buildPrompt itemizes the retrieved context ahead of the customer's question.
func buildPrompt(question string, products []models.Product, policies []models.PolicySection) string {
	var b strings.Builder
	b.WriteString("参考信息：\n")
	if len(products) > 0 {
		b.WriteString("商品：\n")
		for i, p := range products {
			fmt.Fprintf(&b, "%d. %s\n", i+1, describeProduct(p))
		}
	}
	if len(policies) > 0 {
		b.WriteString("政策：\n")
		for i, p := range policies {
			fmt.Fprintf(&b, "%d. %s：%s\n", i+1, p.Title, p.Content)
		}
	}
	b.WriteString("\n顾客问题：")
	b.WriteString(question)
	return b.String()
}

// staticAnswer renders retrieved context directly when the LLM is unavailable.
func staticAnswer(products []models.Product, policies []models.PolicySection) string {
	var b strings.Builder
	if len(products) > 0 {
		b.WriteString("为您找到以下相关商品：")
		for i, p := range products {
			fmt.Fprintf(&b, "\n%d. %s", i+1, describeProduct(p))
		}
	} else {
		b.WriteString("相关说明：")
		for i, p := range policies {
			fmt.Fprintf(&b, "\n%d. %s：%s", i+1, p.Title, p.Content)
		}
	}
	b.WriteString("\n")
	b.WriteString(busyNote)
	return b.String()
}
